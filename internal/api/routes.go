package api

import "github.com/gin-gonic/gin"

// RegisterRoutes binds the engine's API surface. Every route requires an
// authenticated actor; admin routes additionally require the issuing
// authority role.
func RegisterRoutes(r gin.IRouter, h *Handler, authn, admin gin.HandlerFunc) {
	v1 := r.Group("/api/v1", authn)

	requests := v1.Group("/requests")
	requests.POST("/mint", h.SubmitMintRequest)
	requests.POST("/exchange", h.SubmitExchangeRequest)
	requests.GET("/mint", h.ListMintRequests)
	requests.GET("/exchange", h.ListExchangeRequests)
	requests.GET("/:id", h.GetRequest)

	audits := v1.Group("/audits")
	audits.POST("", h.Decide)
	audits.GET("", h.ListAuditRecords)

	certs := v1.Group("/certificates")
	certs.GET("/:id", h.GetCertificate)
	certs.GET("", h.ListCertificates)
	certs.GET("/:id/payout", h.PayoutBreakdown)
	certs.POST("/:id/transfer", admin, h.TransferOwnership)

	v1.GET("/stats/overview", h.Overview)
	v1.GET("/stats/fees", h.FeeRates)

	auditors := v1.Group("/auditors")
	auditors.GET("", h.ListAuditors)
	auditors.POST("", admin, h.AddAuditor)
	auditors.DELETE("/:actor", admin, h.RemoveAuditor)
}
