package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"greentrace/lifecycle-engine/internal/events"
	"greentrace/lifecycle-engine/internal/fees"
)

// Ledger owns the in-flight mint and exchange requests. Submission validates
// input, escrows the requester fee through the treasury, and records the
// request; audit decisions later move requests to a terminal status exactly
// once.
type Ledger struct {
	store    Store
	policy   *fees.Policy
	treasury Treasury
	bus      events.Bus
	logger   *zap.Logger
}

func NewLedger(store Store, policy *fees.Policy, treasury Treasury, bus events.Bus, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:    store,
		policy:   policy,
		treasury: treasury,
		bus:      bus,
		logger:   logger,
	}
}

type SubmitMintInput struct {
	Requester              Actor       `json:"requester"`
	Title                  string      `json:"title"`
	Story                  string      `json:"story"`
	ClaimedCarbonReduction fees.Amount `json:"claimed_carbon_reduction"`
	EvidenceURI            string      `json:"evidence_uri"`
}

// SubmitMintRequest validates a claim, escrows the requester fee, and enters
// the request as PENDING. The evidence URI is stored verbatim, never
// dereferenced.
func (l *Ledger) SubmitMintRequest(ctx context.Context, in SubmitMintInput) (*MintRequest, error) {
	if in.Requester == "" {
		return nil, newError(KindInvalidInput, "requester is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, newError(KindInvalidInput, "title is required")
	}
	if strings.TrimSpace(in.Story) == "" {
		return nil, newError(KindInvalidInput, "story is required")
	}
	if !in.ClaimedCarbonReduction.IsPositive() {
		return nil, newError(KindInvalidValue, "claimed carbon reduction must be positive")
	}

	fee, err := l.policy.ComputeMintFee(in.ClaimedCarbonReduction)
	if err != nil {
		return nil, wrapError(KindInvalidValue, err, "computing mint fee")
	}

	// The fee is escrowed before the request exists; a store failure below
	// releases it again so no value is ever stranded.
	if err := l.treasury.Collect(ctx, in.Requester, fee.RequesterFee); err != nil {
		return nil, wrapError(KindEscrowFailure, err, "collecting fee from %s", in.Requester)
	}

	var req *MintRequest
	err = l.store.Update(ctx, nil, func(tx Tx) error {
		id, err := tx.NextRequestID()
		if err != nil {
			return err
		}
		now := time.Now()
		req = &MintRequest{
			ID:                     id,
			Requester:              in.Requester,
			Title:                  in.Title,
			Story:                  in.Story,
			ClaimedCarbonReduction: in.ClaimedCarbonReduction,
			EvidenceURI:            in.EvidenceURI,
			Status:                 StatusPending,
			RequestedFee:           fee.RequesterFee,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		return tx.SaveMintRequest(req)
	})
	if err != nil {
		if relErr := l.treasury.Release(ctx, in.Requester, fee.RequesterFee); relErr != nil {
			l.logger.Error("releasing escrow after failed submission",
				zap.String("requester", string(in.Requester)),
				zap.Error(relErr))
		}
		return nil, fmt.Errorf("recording mint request: %w", err)
	}

	l.publish(ctx, events.TopicMintSubmitted, req)
	l.logger.Info("mint request submitted",
		zap.Uint64("id", req.ID),
		zap.String("requester", string(req.Requester)),
		zap.String("requested_fee", req.RequestedFee.String()))
	return req, nil
}

// SubmitExchangeRequest enters a redemption request for a certificate the
// requester currently holds. At most one exchange request may be in flight
// per certificate.
func (l *Ledger) SubmitExchangeRequest(ctx context.Context, requester Actor, certificateID uint64) (*ExchangeRequest, error) {
	if requester == "" {
		return nil, newError(KindInvalidInput, "requester is required")
	}

	var req *ExchangeRequest
	keys := []LockKey{{Kind: EntityCertificate, ID: certificateID}}
	err := l.store.Update(ctx, keys, func(tx Tx) error {
		cert, err := tx.Certificate(certificateID)
		if err != nil {
			return err
		}
		if cert == nil {
			return newError(KindNotFound, "certificate %d not found", certificateID)
		}
		if cert.Owner != requester {
			return newError(KindNotOwner, "certificate %d is not held by %s", certificateID, requester)
		}
		if cert.Disposition == DispositionRedeemed {
			return newError(KindAlreadyRedeemed, "certificate %d is already redeemed", certificateID)
		}
		pending, err := tx.PendingExchangeForCertificate(certificateID)
		if err != nil {
			return err
		}
		if pending != nil {
			return newError(KindRequestInFlight, "certificate %d already has pending exchange request %d", certificateID, pending.ID)
		}

		id, err := tx.NextRequestID()
		if err != nil {
			return err
		}
		now := time.Now()
		req = &ExchangeRequest{
			ID:            id,
			Requester:     requester,
			CertificateID: certificateID,
			Status:        StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.SaveExchangeRequest(req)
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, events.TopicExchangeSubmitted, req)
	l.logger.Info("exchange request submitted",
		zap.Uint64("id", req.ID),
		zap.Uint64("certificate_id", certificateID),
		zap.String("requester", string(requester)))
	return req, nil
}

// GetRequest resolves an id to whichever request kind it names. Request ids
// come from one shared counter, so the id alone is unambiguous.
func (l *Ledger) GetRequest(ctx context.Context, id uint64) (*Request, error) {
	var out *Request
	err := l.store.View(ctx, func(tx Tx) error {
		mint, err := tx.MintRequest(id)
		if err != nil {
			return err
		}
		if mint != nil {
			out = &Request{Kind: KindMint, Mint: mint}
			return nil
		}
		exchange, err := tx.ExchangeRequest(id)
		if err != nil {
			return err
		}
		if exchange != nil {
			out = &Request{Kind: KindExchange, Exchange: exchange}
			return nil
		}
		return newError(KindNotFound, "request %d not found", id)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) ListMintRequests(ctx context.Context, f MintRequestFilter) ([]*MintRequest, error) {
	return l.store.ListMintRequests(ctx, f)
}

func (l *Ledger) ListExchangeRequests(ctx context.Context, f ExchangeRequestFilter) ([]*ExchangeRequest, error) {
	return l.store.ListExchangeRequests(ctx, f)
}

func (l *Ledger) publish(ctx context.Context, topic string, payload any) {
	if l.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		l.logger.Warn("marshaling event payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := l.bus.Publish(ctx, events.Event{Topic: topic, Payload: data}); err != nil {
		l.logger.Warn("publishing event", zap.String("topic", topic), zap.Error(err))
	}
}
