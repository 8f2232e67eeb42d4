package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"greentrace/lifecycle-engine/internal/fees"
)

func TestOverviewEmpty(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.stats.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, out.MintRequests.Total)
	assert.Equal(t, 0, out.CertificatesIssued)
	assert.True(t, out.TotalApprovedCarbonValue.IsZero())
	assert.Equal(t, uint64(1), out.NextRequestID)
	assert.Equal(t, uint64(1), out.NextCertificateID)
}

func TestOverviewTallies(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	e.submitMint(t, 50)
	cert := e.mintCertificate(t, 100, 80)
	e.mintCertificate(t, 200, 150)

	req, err := e.ledger.SubmitExchangeRequest(ctx, testRequester, cert.ID)
	require.NoError(t, err)
	_, err = e.audits.Decide(ctx, DecideInput{
		Auditor:     testAuditor,
		SubjectID:   req.ID,
		SubjectType: KindExchange,
		Decision:    DecisionApprove,
	})
	require.NoError(t, err)

	out, err := e.stats.Overview(ctx)
	require.NoError(t, err)

	assert.Equal(t, RequestCounts{Pending: 1, Approved: 2, Total: 3}, out.MintRequests)
	assert.Equal(t, RequestCounts{Approved: 1, Total: 1}, out.ExchangeRequests)
	assert.Equal(t, 2, out.CertificatesIssued)
	assert.Equal(t, 1, out.CertificatesRedeemed)
	assert.Equal(t, fees.NewAmountFromUnits(230).String(), out.TotalApprovedCarbonValue.String())
	assert.Equal(t, uint64(5), out.NextRequestID)
	assert.Equal(t, uint64(3), out.NextCertificateID)
}

func TestOverviewCacheInvalidation(t *testing.T) {
	e := newTestEngine(t)

	// A long TTL so only event-driven invalidation can refresh the view.
	stats := NewAggregator(e.store, e.bus, zap.NewNop(), time.Hour)

	out, err := stats.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, out.MintRequests.Total)

	e.submitMint(t, 100)

	out, err = stats.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.MintRequests.Total)
	assert.Equal(t, 1, out.MintRequests.Pending)
}
