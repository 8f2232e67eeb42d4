package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"greentrace/lifecycle-engine/internal/events"
	"greentrace/lifecycle-engine/internal/fees"
	"greentrace/lifecycle-engine/pkg/workflows"
)

// AuditEngine consumes auditor decisions. A subject moves out of PENDING
// exactly once; the status transition, the audit record, the certificate
// effect, and the treasury movement commit or abort as one unit.
type AuditEngine struct {
	store    Store
	policy   *fees.Policy
	roles    RoleDirectory
	treasury Treasury
	registry *Registry
	bus      events.Bus
	logger   *zap.Logger
	requests *workflows.StateMachine
}

func NewAuditEngine(store Store, policy *fees.Policy, roles RoleDirectory, treasury Treasury, registry *Registry, bus events.Bus, logger *zap.Logger) *AuditEngine {
	return &AuditEngine{
		store:    store,
		policy:   policy,
		roles:    roles,
		treasury: treasury,
		registry: registry,
		bus:      bus,
		logger:   logger,
		requests: workflows.NewRequestStateMachine(),
	}
}

type DecideInput struct {
	Auditor     Actor       `json:"auditor"`
	SubjectID   uint64      `json:"subject_id"`
	SubjectType RequestKind `json:"subject_type"`
	Decision    Decision    `json:"decision"`
	// DecidedValue is the auditor-determined carbon value. Required for
	// mint approvals; ignored for exchange decisions, which settle at the
	// certificate's stored approved value.
	DecidedValue fees.Amount `json:"decided_value"`
	Reason       string      `json:"reason"`
}

// Decide applies one auditor decision and returns the terminal AuditRecord.
func (e *AuditEngine) Decide(ctx context.Context, in DecideInput) (*AuditRecord, error) {
	ok, err := e.roles.HasAuditorRole(ctx, in.Auditor)
	if err != nil {
		return nil, fmt.Errorf("looking up auditor role: %w", err)
	}
	if !ok {
		return nil, newError(KindUnauthorized, "%s does not hold the auditor role", in.Auditor)
	}

	switch in.Decision {
	case DecisionApprove, DecisionReject:
	default:
		return nil, newError(KindInvalidInput, "unknown decision %q", in.Decision)
	}
	if in.Decision == DecisionReject && strings.TrimSpace(in.Reason) == "" {
		return nil, newError(KindMissingReason, "rejection requires a reason")
	}
	if in.Decision == DecisionApprove && in.SubjectType == KindMint && !in.DecidedValue.IsPositive() {
		return nil, newError(KindMissingValue, "mint approval requires a positive decided value")
	}

	switch in.SubjectType {
	case KindMint:
		return e.decideMint(ctx, in)
	case KindExchange:
		return e.decideExchange(ctx, in)
	default:
		return nil, newError(KindInvalidInput, "unknown subject type %q", in.SubjectType)
	}
}

func (e *AuditEngine) decideMint(ctx context.Context, in DecideInput) (*AuditRecord, error) {
	var (
		record *AuditRecord
		cert   *Certificate
	)
	keys := []LockKey{{Kind: EntityMintRequest, ID: in.SubjectID}}
	err := e.store.Update(ctx, keys, func(tx Tx) error {
		req, err := tx.MintRequest(in.SubjectID)
		if err != nil {
			return err
		}
		if req == nil {
			return newError(KindNotFound, "mint request %d not found", in.SubjectID)
		}
		target := statusFor(in.Decision)
		if !e.requests.CanTransition(string(req.Status), string(target)) {
			return newError(KindInvalidState, "mint request %d is %s, not pending", req.ID, req.Status)
		}

		req.Status = target
		req.UpdatedAt = time.Now()
		if err := tx.SaveMintRequest(req); err != nil {
			return err
		}

		record = e.newRecord(in, in.DecidedValue)
		if err := tx.SaveAuditRecord(record); err != nil {
			return err
		}

		if in.Decision == DecisionReject {
			// Signal the escrow release; a failure aborts the whole
			// decision so the request stays PENDING.
			if err := e.treasury.Release(ctx, req.Requester, req.RequestedFee); err != nil {
				return wrapError(KindEscrowFailure, err, "releasing escrow to %s", req.Requester)
			}
			return nil
		}

		cert, err = e.registry.IssueTx(tx, req.ID, req.Requester, in.DecidedValue)
		if err != nil {
			return err
		}

		fee, err := e.policy.ComputeMintFee(req.ClaimedCarbonReduction)
		if err != nil {
			return wrapError(KindInvalidValue, err, "recomputing mint fee")
		}
		if fee.AuditorShare.IsPositive() {
			if err := e.treasury.Disburse(ctx, in.Auditor, fee.AuditorShare); err != nil {
				return wrapError(KindEscrowFailure, err, "disbursing auditor share to %s", in.Auditor)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.TopicAuditDecided, record)
	if cert != nil {
		e.publish(ctx, events.TopicCertificateIssued, cert)
		e.logger.Info("certificate issued",
			zap.Uint64("certificate_id", cert.ID),
			zap.Uint64("mint_request_id", in.SubjectID),
			zap.String("approved_carbon_value", cert.ApprovedCarbonValue.String()))
	} else {
		e.logger.Info("mint request rejected",
			zap.Uint64("mint_request_id", in.SubjectID),
			zap.String("auditor", string(in.Auditor)))
	}
	return record, nil
}

func (e *AuditEngine) decideExchange(ctx context.Context, in DecideInput) (*AuditRecord, error) {
	// The certificate id is discovered outside the lock, then everything is
	// re-validated once both entities are held.
	var certificateID uint64
	err := e.store.View(ctx, func(tx Tx) error {
		req, err := tx.ExchangeRequest(in.SubjectID)
		if err != nil {
			return err
		}
		if req == nil {
			return newError(KindNotFound, "exchange request %d not found", in.SubjectID)
		}
		certificateID = req.CertificateID
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		record *AuditRecord
		cert   *Certificate
	)
	keys := []LockKey{
		{Kind: EntityExchangeRequest, ID: in.SubjectID},
		{Kind: EntityCertificate, ID: certificateID},
	}
	err = e.store.Update(ctx, keys, func(tx Tx) error {
		req, err := tx.ExchangeRequest(in.SubjectID)
		if err != nil {
			return err
		}
		if req == nil {
			return newError(KindNotFound, "exchange request %d not found", in.SubjectID)
		}
		target := statusFor(in.Decision)
		if !e.requests.CanTransition(string(req.Status), string(target)) {
			return newError(KindInvalidState, "exchange request %d is %s, not pending", req.ID, req.Status)
		}

		req.Status = target
		req.UpdatedAt = time.Now()
		if err := tx.SaveExchangeRequest(req); err != nil {
			return err
		}

		if in.Decision == DecisionReject {
			record = e.newRecord(in, fees.Zero())
			return tx.SaveAuditRecord(record)
		}

		cert, err = e.registry.RedeemTx(tx, req.CertificateID)
		if err != nil {
			return err
		}

		// Exchange audits settle at the value the mint audit approved.
		record = e.newRecord(in, cert.ApprovedCarbonValue)
		if err := tx.SaveAuditRecord(record); err != nil {
			return err
		}

		payout, err := e.policy.ComputeExchangePayout(cert.ApprovedCarbonValue)
		if err != nil {
			return wrapError(KindInvalidValue, err, "computing exchange payout")
		}
		if err := e.treasury.Disburse(ctx, cert.Owner, payout.PayoutToHolder); err != nil {
			return wrapError(KindEscrowFailure, err, "disbursing payout to %s", cert.Owner)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.TopicAuditDecided, record)
	if cert != nil {
		e.publish(ctx, events.TopicCertificateRedeemed, cert)
		e.logger.Info("certificate redeemed",
			zap.Uint64("certificate_id", cert.ID),
			zap.Uint64("exchange_request_id", in.SubjectID))
	} else {
		e.logger.Info("exchange request rejected",
			zap.Uint64("exchange_request_id", in.SubjectID),
			zap.String("auditor", string(in.Auditor)))
	}
	return record, nil
}

// PayoutBreakdown previews the settlement for an active certificate without
// mutating anything.
func (e *AuditEngine) PayoutBreakdown(ctx context.Context, certificateID uint64) (*fees.ExchangePayout, error) {
	cert, err := e.registry.Get(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	payout, err := e.policy.ComputeExchangePayout(cert.ApprovedCarbonValue)
	if err != nil {
		return nil, wrapError(KindInvalidValue, err, "computing exchange payout")
	}
	return &payout, nil
}

func (e *AuditEngine) ListAuditRecords(ctx context.Context, f AuditRecordFilter) ([]*AuditRecord, error) {
	return e.store.ListAuditRecords(ctx, f)
}

func (e *AuditEngine) newRecord(in DecideInput, decidedValue fees.Amount) *AuditRecord {
	return &AuditRecord{
		ID:           uuid.New(),
		Auditor:      in.Auditor,
		SubjectID:    in.SubjectID,
		SubjectType:  in.SubjectType,
		DecidedValue: decidedValue,
		Decision:     in.Decision,
		Reason:       in.Reason,
		DecidedAt:    time.Now(),
	}
}

func statusFor(d Decision) RequestStatus {
	if d == DecisionApprove {
		return StatusApproved
	}
	return StatusRejected
}

func (e *AuditEngine) publish(ctx context.Context, topic string, payload any) {
	if e.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.Warn("marshaling event payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := e.bus.Publish(ctx, events.Event{Topic: topic, Payload: data}); err != nil {
		e.logger.Warn("publishing event", zap.String("topic", topic), zap.Error(err))
	}
}
