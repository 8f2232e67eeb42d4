package lifecycle

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"greentrace/lifecycle-engine/internal/events"
	"greentrace/lifecycle-engine/internal/fees"
	"greentrace/lifecycle-engine/pkg/workflows"
)

// Registry owns certificates: issuance on mint approval, redemption on
// exchange approval, and ownership updates driven by external transfer
// events (marketplace sales). Issuance and redemption run inside the audit
// engine's transaction so a decision and its certificate effect commit as
// one unit.
type Registry struct {
	store  Store
	certs  *workflows.StateMachine
	bus    events.Bus
	logger *zap.Logger
}

func NewRegistry(store Store, bus events.Bus, logger *zap.Logger) *Registry {
	return &Registry{
		store:  store,
		certs:  workflows.NewCertificateStateMachine(),
		bus:    bus,
		logger: logger,
	}
}

// IssueTx mints a certificate for an approved mint request within the
// caller's transaction. The AlreadyIssued check is defensive: the audit
// engine's single-transition guarantee should make it unreachable.
func (r *Registry) IssueTx(tx Tx, sourceMintRequestID uint64, owner Actor, approvedCarbonValue fees.Amount) (*Certificate, error) {
	existing, err := tx.CertificateBySource(sourceMintRequestID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, newError(KindAlreadyIssued, "certificate %d already issued for mint request %d", existing.ID, sourceMintRequestID)
	}

	id, err := tx.NextCertificateID()
	if err != nil {
		return nil, err
	}
	cert := &Certificate{
		ID:                  id,
		Owner:               owner,
		SourceMintRequestID: sourceMintRequestID,
		ApprovedCarbonValue: approvedCarbonValue,
		Disposition:         DispositionActive,
		IssuedAt:            time.Now(),
	}
	if err := tx.SaveCertificate(cert); err != nil {
		return nil, err
	}
	return cert, nil
}

// RedeemTx flips a certificate to REDEEMED within the caller's transaction.
// Redemption is terminal.
func (r *Registry) RedeemTx(tx Tx, certificateID uint64) (*Certificate, error) {
	cert, err := tx.Certificate(certificateID)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, newError(KindNotFound, "certificate %d not found", certificateID)
	}
	if !r.certs.CanTransition(string(cert.Disposition), string(DispositionRedeemed)) {
		return nil, newError(KindAlreadyRedeemed, "certificate %d is already redeemed", certificateID)
	}
	now := time.Now()
	cert.Disposition = DispositionRedeemed
	cert.RedeemedAt = &now
	if err := tx.SaveCertificate(cert); err != nil {
		return nil, err
	}
	return cert, nil
}

// TransferOwnership records an external ownership change. Redeemed
// certificates are frozen and cannot move.
func (r *Registry) TransferOwnership(ctx context.Context, certificateID uint64, newOwner Actor) error {
	if newOwner == "" {
		return newError(KindInvalidInput, "new owner is required")
	}
	var cert *Certificate
	keys := []LockKey{{Kind: EntityCertificate, ID: certificateID}}
	err := r.store.Update(ctx, keys, func(tx Tx) error {
		var err error
		cert, err = tx.Certificate(certificateID)
		if err != nil {
			return err
		}
		if cert == nil {
			return newError(KindNotFound, "certificate %d not found", certificateID)
		}
		if cert.Disposition == DispositionRedeemed {
			return newError(KindAlreadyRedeemed, "certificate %d is redeemed and non-transferable", certificateID)
		}
		cert.Owner = newOwner
		return tx.SaveCertificate(cert)
	})
	if err != nil {
		return err
	}

	r.publish(ctx, events.TopicOwnershipChanged, cert)
	r.logger.Info("certificate transferred",
		zap.Uint64("certificate_id", certificateID),
		zap.String("new_owner", string(newOwner)))
	return nil
}

// Get returns a certificate by id.
func (r *Registry) Get(ctx context.Context, certificateID uint64) (*Certificate, error) {
	var cert *Certificate
	err := r.store.View(ctx, func(tx Tx) error {
		var err error
		cert, err = tx.Certificate(certificateID)
		if err != nil {
			return err
		}
		if cert == nil {
			return newError(KindNotFound, "certificate %d not found", certificateID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cert, nil
}

func (r *Registry) List(ctx context.Context, f CertificateFilter) ([]*Certificate, error) {
	return r.store.ListCertificates(ctx, f)
}

func (r *Registry) publish(ctx context.Context, topic string, payload any) {
	if r.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn("marshaling event payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := r.bus.Publish(ctx, events.Event{Topic: topic, Payload: data}); err != nil {
		r.logger.Warn("publishing event", zap.String("topic", topic), zap.Error(err))
	}
}
