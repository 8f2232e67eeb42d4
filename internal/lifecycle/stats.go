package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"greentrace/lifecycle-engine/internal/events"
	"greentrace/lifecycle-engine/internal/fees"
)

// RequestCounts breaks one request kind down by status.
type RequestCounts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Total    int `json:"total"`
}

// Overview is the read-only summary derived from ledger and registry state.
type Overview struct {
	MintRequests             RequestCounts `json:"mint_requests"`
	ExchangeRequests         RequestCounts `json:"exchange_requests"`
	CertificatesIssued       int           `json:"certificates_issued"`
	CertificatesRedeemed     int           `json:"certificates_redeemed"`
	TotalApprovedCarbonValue fees.Amount   `json:"total_approved_carbon_value"`
	NextRequestID            uint64        `json:"next_request_id"`
	NextCertificateID        uint64        `json:"next_certificate_id"`
	ComputedAt               time.Time     `json:"computed_at"`
}

// Aggregator recomputes Overview on demand. A short-TTL cache sits in front;
// lifecycle events invalidate it so readers never see stale totals after a
// mutation.
type Aggregator struct {
	store  Store
	cache  *overviewCache
	logger *zap.Logger
}

const overviewCacheKey = "overview"

func NewAggregator(store Store, bus events.Bus, logger *zap.Logger, cacheTTL time.Duration) *Aggregator {
	a := &Aggregator{
		store:  store,
		cache:  newOverviewCache(cacheTTL),
		logger: logger,
	}
	if bus != nil {
		for _, topic := range []string{
			events.TopicMintSubmitted,
			events.TopicExchangeSubmitted,
			events.TopicAuditDecided,
			events.TopicCertificateIssued,
			events.TopicCertificateRedeemed,
			events.TopicOwnershipChanged,
		} {
			if _, err := bus.Subscribe(topic, a.invalidate); err != nil {
				logger.Warn("subscribing stats invalidation", zap.String("topic", topic), zap.Error(err))
			}
		}
	}
	return a
}

func (a *Aggregator) invalidate(ctx context.Context, e events.Event) {
	a.cache.Delete(overviewCacheKey)
}

// Overview returns the current summary, recomputing if the cache is cold.
func (a *Aggregator) Overview(ctx context.Context) (*Overview, error) {
	if cached, ok := a.cache.Get(overviewCacheKey); ok {
		return cached.(*Overview), nil
	}

	mints, err := a.store.ListMintRequests(ctx, MintRequestFilter{})
	if err != nil {
		return nil, err
	}
	exchanges, err := a.store.ListExchangeRequests(ctx, ExchangeRequestFilter{})
	if err != nil {
		return nil, err
	}
	certs, err := a.store.ListCertificates(ctx, CertificateFilter{})
	if err != nil {
		return nil, err
	}
	nextReq, nextCert, err := a.store.Counters(ctx)
	if err != nil {
		return nil, err
	}

	out := &Overview{
		NextRequestID:            nextReq,
		NextCertificateID:        nextCert,
		TotalApprovedCarbonValue: fees.Zero(),
		ComputedAt:               time.Now(),
	}
	for _, m := range mints {
		tally(&out.MintRequests, m.Status)
	}
	for _, x := range exchanges {
		tally(&out.ExchangeRequests, x.Status)
	}
	for _, c := range certs {
		out.CertificatesIssued++
		if c.Disposition == DispositionRedeemed {
			out.CertificatesRedeemed++
		}
		out.TotalApprovedCarbonValue = out.TotalApprovedCarbonValue.Add(c.ApprovedCarbonValue)
	}

	a.cache.Set(overviewCacheKey, out)
	return out, nil
}

func tally(c *RequestCounts, s RequestStatus) {
	c.Total++
	switch s {
	case StatusPending:
		c.Pending++
	case StatusApproved:
		c.Approved++
	case StatusRejected:
		c.Rejected++
	}
}
