package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"greentrace/lifecycle-engine/internal/auth"
	"greentrace/lifecycle-engine/internal/fees"
	"greentrace/lifecycle-engine/internal/lifecycle"
	"greentrace/lifecycle-engine/internal/roles"
)

// Handler is the HTTP binding over the lifecycle engine. It is a thin
// translation layer: all invariants live in the engine.
type Handler struct {
	ledger   *lifecycle.Ledger
	audits   *lifecycle.AuditEngine
	registry *lifecycle.Registry
	stats    *lifecycle.Aggregator
	policy   *fees.Policy
	roles    roles.Manager
	logger   *zap.Logger
}

func NewHandler(
	ledger *lifecycle.Ledger,
	audits *lifecycle.AuditEngine,
	registry *lifecycle.Registry,
	stats *lifecycle.Aggregator,
	policy *fees.Policy,
	roleManager roles.Manager,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		ledger:   ledger,
		audits:   audits,
		registry: registry,
		stats:    stats,
		policy:   policy,
		roles:    roleManager,
		logger:   logger,
	}
}

type submitMintBody struct {
	Title                  string      `json:"title"`
	Story                  string      `json:"story"`
	ClaimedCarbonReduction fees.Amount `json:"claimed_carbon_reduction"`
	EvidenceURI            string      `json:"evidence_uri"`
}

func (h *Handler) SubmitMintRequest(c *gin.Context) {
	var body submitMintBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.ledger.SubmitMintRequest(c.Request.Context(), lifecycle.SubmitMintInput{
		Requester:              auth.ActorFrom(c),
		Title:                  body.Title,
		Story:                  body.Story,
		ClaimedCarbonReduction: body.ClaimedCarbonReduction,
		EvidenceURI:            body.EvidenceURI,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

type submitExchangeBody struct {
	CertificateID uint64 `json:"certificate_id"`
}

func (h *Handler) SubmitExchangeRequest(c *gin.Context) {
	var body submitExchangeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.ledger.SubmitExchangeRequest(c.Request.Context(), auth.ActorFrom(c), body.CertificateID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *Handler) GetRequest(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}
	req, err := h.ledger.GetRequest(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) ListMintRequests(c *gin.Context) {
	var f lifecycle.MintRequestFilter
	if v := c.Query("requester"); v != "" {
		actor := lifecycle.Actor(v)
		f.Requester = &actor
	}
	if v := c.Query("status"); v != "" {
		status := lifecycle.RequestStatus(v)
		f.Status = &status
	}
	out, err := h.ledger.ListMintRequests(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ListExchangeRequests(c *gin.Context) {
	var f lifecycle.ExchangeRequestFilter
	if v := c.Query("requester"); v != "" {
		actor := lifecycle.Actor(v)
		f.Requester = &actor
	}
	if v := c.Query("status"); v != "" {
		status := lifecycle.RequestStatus(v)
		f.Status = &status
	}
	out, err := h.ledger.ListExchangeRequests(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type decideBody struct {
	SubjectID    uint64                `json:"subject_id"`
	SubjectType  lifecycle.RequestKind `json:"subject_type"`
	Decision     lifecycle.Decision    `json:"decision"`
	DecidedValue fees.Amount           `json:"decided_value"`
	Reason       string                `json:"reason"`
}

func (h *Handler) Decide(c *gin.Context) {
	var body decideBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	record, err := h.audits.Decide(c.Request.Context(), lifecycle.DecideInput{
		Auditor:      auth.ActorFrom(c),
		SubjectID:    body.SubjectID,
		SubjectType:  body.SubjectType,
		Decision:     body.Decision,
		DecidedValue: body.DecidedValue,
		Reason:       body.Reason,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *Handler) ListAuditRecords(c *gin.Context) {
	var f lifecycle.AuditRecordFilter
	if v := c.Query("auditor"); v != "" {
		actor := lifecycle.Actor(v)
		f.Auditor = &actor
	}
	if v := c.Query("subject_type"); v != "" {
		kind := lifecycle.RequestKind(v)
		f.SubjectType = &kind
	}
	out, err := h.audits.ListAuditRecords(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetCertificate(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid certificate id"})
		return
	}
	cert, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (h *Handler) ListCertificates(c *gin.Context) {
	var f lifecycle.CertificateFilter
	if v := c.Query("owner"); v != "" {
		actor := lifecycle.Actor(v)
		f.Owner = &actor
	}
	if v := c.Query("disposition"); v != "" {
		d := lifecycle.Disposition(v)
		f.Disposition = &d
	}
	out, err := h.registry.List(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) PayoutBreakdown(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid certificate id"})
		return
	}
	payout, err := h.audits.PayoutBreakdown(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payout)
}

type transferBody struct {
	NewOwner lifecycle.Actor `json:"new_owner"`
}

// TransferOwnership ingests an external marketplace transfer event.
func (h *Handler) TransferOwnership(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid certificate id"})
		return
	}
	var body transferBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.registry.TransferOwnership(c.Request.Context(), id, body.NewOwner); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Overview(c *gin.Context) {
	out, err := h.stats.Overview(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) FeeRates(c *gin.Context) {
	r := h.policy.Rates()
	c.JSON(http.StatusOK, gin.H{
		"base_rate_bps":          r.BaseRateBps,
		"audit_fee_rate_bps":     r.AuditFeeRateBps,
		"auditor_share_bps":      r.AuditorShareBps,
		"system_fee_rate_bps":    r.SystemFeeRateBps,
		"exchange_audit_fee_bps": r.ExchangeAuditFeeRateBps,
		"min_mint_fee":           r.MinMintFee,
	})
}

type auditorBody struct {
	Actor lifecycle.Actor `json:"actor"`
}

func (h *Handler) AddAuditor(c *gin.Context) {
	var body auditorBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.roles.AddAuditor(c.Request.Context(), body.Actor, auth.ActorFrom(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RemoveAuditor(c *gin.Context) {
	if err := h.roles.RemoveAuditor(c.Request.Context(), lifecycle.Actor(c.Param("actor"))); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListAuditors(c *gin.Context) {
	out, err := h.roles.ListAuditors(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func parseID(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	kind := lifecycle.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case lifecycle.KindInvalidInput, lifecycle.KindInvalidValue,
		lifecycle.KindMissingReason, lifecycle.KindMissingValue:
		status = http.StatusBadRequest
	case lifecycle.KindUnauthorized, lifecycle.KindNotOwner:
		status = http.StatusForbidden
	case lifecycle.KindNotFound:
		status = http.StatusNotFound
	case lifecycle.KindInvalidState, lifecycle.KindAlreadyRedeemed,
		lifecycle.KindAlreadyIssued, lifecycle.KindRequestInFlight:
		status = http.StatusConflict
	case lifecycle.KindEscrowFailure:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("internal error", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}
