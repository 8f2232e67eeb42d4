package lifecycle

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"greentrace/lifecycle-engine/internal/events"
	"greentrace/lifecycle-engine/internal/fees"
)

// fakeTreasury records every payment-collaborator call and can be told to
// fail, for exercising escrow-failure rollback.
type fakeTreasury struct {
	mu        sync.Mutex
	collects  []movement
	releases  []movement
	disburses []movement

	failCollect  error
	failRelease  error
	failDisburse error
}

type movement struct {
	actor  Actor
	amount fees.Amount
}

func (f *fakeTreasury) Collect(ctx context.Context, from Actor, amount fees.Amount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCollect != nil {
		return f.failCollect
	}
	f.collects = append(f.collects, movement{from, amount})
	return nil
}

func (f *fakeTreasury) Release(ctx context.Context, to Actor, amount fees.Amount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRelease != nil {
		return f.failRelease
	}
	f.releases = append(f.releases, movement{to, amount})
	return nil
}

func (f *fakeTreasury) Disburse(ctx context.Context, to Actor, amount fees.Amount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDisburse != nil {
		return f.failDisburse
	}
	f.disburses = append(f.disburses, movement{to, amount})
	return nil
}

// fakeRoles answers role lookups from a fixed set.
type fakeRoles map[Actor]bool

func (f fakeRoles) HasAuditorRole(ctx context.Context, actor Actor) (bool, error) {
	return f[actor], nil
}

type testEngine struct {
	store    *MemStore
	treasury *fakeTreasury
	ledger   *Ledger
	audits   *AuditEngine
	registry *Registry
	stats    *Aggregator
	bus      *events.LocalBus
}

const (
	testRequester Actor = "0xrequester"
	testAuditor   Actor = "0xauditor"
	testBuyer     Actor = "0xbuyer"
)

// Scenario rates: 5% request fee with no floor, half of it partitioned, the
// auditor taking 80% of the partition; 1%+4% off the top on redemption.
func testPolicy() *fees.Policy {
	return fees.NewPolicy(fees.Rates{
		BaseRateBps:             500,
		AuditFeeRateBps:         5000,
		AuditorShareBps:         8000,
		SystemFeeRateBps:        100,
		ExchangeAuditFeeRateBps: 400,
		MinMintFee:              fees.Zero(),
	})
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	store := NewMemStore()
	treasury := &fakeTreasury{}
	bus := events.NewLocalBus()
	logger := zap.NewNop()
	policy := testPolicy()
	roleDir := fakeRoles{testAuditor: true}

	registry := NewRegistry(store, bus, logger)
	return &testEngine{
		store:    store,
		treasury: treasury,
		ledger:   NewLedger(store, policy, treasury, bus, logger),
		audits:   NewAuditEngine(store, policy, roleDir, treasury, registry, bus, logger),
		registry: registry,
		stats:    NewAggregator(store, bus, logger, 0),
		bus:      bus,
	}
}

func (e *testEngine) submitMint(t *testing.T, claimedUnits int64) *MintRequest {
	t.Helper()
	req, err := e.ledger.SubmitMintRequest(context.Background(), SubmitMintInput{
		Requester:              testRequester,
		Title:                  "Beach cleanup",
		Story:                  "Removed plastic waste from the shoreline",
		ClaimedCarbonReduction: fees.NewAmountFromUnits(claimedUnits),
		EvidenceURI:            "ipfs://QmEvidence",
	})
	if err != nil {
		t.Fatalf("submitting mint request: %v", err)
	}
	return req
}

// mintCertificate walks a request through approval and returns the
// certificate.
func (e *testEngine) mintCertificate(t *testing.T, claimedUnits, approvedUnits int64) *Certificate {
	t.Helper()
	req := e.submitMint(t, claimedUnits)
	_, err := e.audits.Decide(context.Background(), DecideInput{
		Auditor:      testAuditor,
		SubjectID:    req.ID,
		SubjectType:  KindMint,
		Decision:     DecisionApprove,
		DecidedValue: fees.NewAmountFromUnits(approvedUnits),
	})
	if err != nil {
		t.Fatalf("approving mint request: %v", err)
	}
	certs, err := e.registry.List(context.Background(), CertificateFilter{})
	if err != nil {
		t.Fatalf("listing certificates: %v", err)
	}
	for _, c := range certs {
		if c.SourceMintRequestID == req.ID {
			return c
		}
	}
	t.Fatalf("no certificate issued for mint request %d", req.ID)
	return nil
}
