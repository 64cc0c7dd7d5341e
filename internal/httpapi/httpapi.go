package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"kasirinaja/salecore/internal/apperror"
	"kasirinaja/salecore/internal/domain"
	"kasirinaja/salecore/internal/keys"
	"kasirinaja/salecore/internal/service"
)

const (
	tenantKey      = "tenant_id"
	tenantHeader   = "X-Tenant-ID"
	maxRequestBody = 1 << 20
)

type API struct {
	service       *service.Service
	tokens        *TokenManager
	limiter       *TenantLimiter
	allowedOrigin string
	logger        zerolog.Logger
}

// New wires the HTTP surface. tokens and limiter are optional: with tokens
// every /api/v1 request must carry a bearer token, without them the tenant
// comes from the X-Tenant-ID header. Without a limiter commits are not
// throttled.
func New(svc *service.Service, tokens *TokenManager, limiter *TenantLimiter, allowedOrigin string, logger zerolog.Logger) *API {
	return &API{
		service:       svc,
		tokens:        tokens,
		limiter:       limiter,
		allowedOrigin: strings.TrimSpace(allowedOrigin),
		logger:        logger.With().Str("component", "httpapi").Logger(),
	}
}

func (a *API) Handler() http.Handler {
	r := gin.New()
	r.Use(a.recovery(), a.requestLogger(), securityHeaders())
	if a.allowedOrigin != "" {
		r.Use(cors.New(a.corsConfig()))
	}

	r.GET("/healthz", a.handleHealth)

	v1 := r.Group("/api/v1", a.resolveTenant())
	v1.POST("/sales", a.throttleCommits(), a.handleCommitSale)
	v1.GET("/sales/daily/:date", a.handleDailySales)
	v1.GET("/sales/daily/:date/reconcile", a.handleReconcile)
	v1.GET("/transactions", a.handleListTransactions)
	v1.GET("/transactions/:id", a.handleGetTransaction)
	v1.GET("/targets", a.handleListTargets)
	v1.POST("/targets", a.handleCreateTarget)
	v1.PATCH("/targets/:id", a.handleUpdateTarget)
	v1.DELETE("/targets/:id", a.handleDeleteTarget)
	v1.GET("/inventory", a.handleInventory)
	v1.PUT("/inventory", a.handleSeedInventory)

	return r
}

func (a *API) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", "Authorization", tenantHeader},
		ExposeHeaders: []string{"X-RateLimit-Limit", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if a.allowedOrigin == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{a.allowedOrigin}
	}
	return cfg
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC().Format(time.RFC3339)})
}

func (a *API) handleCommitSale(c *gin.Context) {
	var req domain.SaleRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		a.writeError(c, badRequest(err))
		return
	}

	tenant := c.GetString(tenantKey)
	body := strings.TrimSpace(req.TenantID)
	if tenant != "" && body != "" && body != tenant {
		abort(c, http.StatusForbidden, "tenant_id does not match the authenticated tenant")
		return
	}
	if tenant != "" {
		req.TenantID = tenant
	}

	result, err := a.service.CommitSale(c.Request.Context(), req)
	if err != nil {
		a.logFailure(c, err)
		c.JSON(statusFor(err), result)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (a *API) handleDailySales(c *gin.Context) {
	summary, err := a.service.GetDailySales(c.Request.Context(), c.Param("date"), c.GetString(tenantKey))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
}

func (a *API) handleReconcile(c *gin.Context) {
	result, err := a.service.ReconcileDailySales(c.Request.Context(), c.Param("date"), c.GetString(tenantKey))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reconciliation": result})
}

func (a *API) handleListTransactions(c *gin.Context) {
	list, err := a.service.ListTransactions(c.Request.Context(), dateQuery(c), c.GetString(tenantKey))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "date": list.Date, "transactions": list.Transactions, "count": list.Count})
}

func (a *API) handleGetTransaction(c *gin.Context) {
	tx, err := a.service.GetTransaction(c.Request.Context(), c.Param("id"), c.GetString(tenantKey))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": tx})
}

func (a *API) handleListTargets(c *gin.Context) {
	targets, err := a.service.ListTargets(c.Request.Context(), dateQuery(c), c.GetString(tenantKey))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "targets": targets})
}

func (a *API) handleCreateTarget(c *gin.Context) {
	var req domain.TargetCreateRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		a.writeError(c, badRequest(err))
		return
	}
	target, err := a.service.CreateTarget(c.Request.Context(), c.GetString(tenantKey), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "target": target})
}

func (a *API) handleUpdateTarget(c *gin.Context) {
	var req domain.TargetUpdateRequest
	if err := decodeJSON(c.Request, &req); err != nil {
		a.writeError(c, badRequest(err))
		return
	}
	if req.Date == "" {
		req.Date = strings.TrimSpace(c.Query("date"))
	}
	target, err := a.service.UpdateTarget(c.Request.Context(), c.GetString(tenantKey), c.Param("id"), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "target": target})
}

func (a *API) handleDeleteTarget(c *gin.Context) {
	if err := a.service.DeleteTarget(c.Request.Context(), c.GetString(tenantKey), c.Param("id")); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *API) handleInventory(c *gin.Context) {
	snapshot, err := a.service.InventorySnapshot(c.Request.Context(), c.GetString(tenantKey))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "inventory": snapshot})
}

func (a *API) handleSeedInventory(c *gin.Context) {
	var req struct {
		Records []domain.CatalogRecord `json:"records"`
	}
	if err := decodeJSON(c.Request, &req); err != nil {
		a.writeError(c, badRequest(err))
		return
	}
	tenant := c.GetString(tenantKey)
	if err := a.service.SeedInventory(c.Request.Context(), tenant, req.Records); err != nil {
		a.writeError(c, err)
		return
	}
	snapshot, err := a.service.InventorySnapshot(c.Request.Context(), tenant)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "inventory": snapshot})
}

// writeError renders err with the status its kind maps to. 5xx bodies stay
// generic; the cause only goes to the log.
func (a *API) writeError(c *gin.Context, err error) {
	a.logFailure(c, err)
	c.JSON(statusFor(err), gin.H{"success": false, "errors": apperror.Details(err)})
}

func (a *API) logFailure(c *gin.Context, err error) {
	status := statusFor(err)
	event := a.logger.Debug()
	if status >= 500 {
		event = a.logger.Error()
	}
	event.Err(err).
		Int("status", status).
		Str("tenant", c.GetString(tenantKey)).
		Str("path", c.FullPath()).
		Msg("request failed")
}

func statusFor(err error) int {
	var verr *apperror.ValidationError
	var serr *apperror.StockError
	var perr *apperror.PersistenceError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrInvalidDate):
		return http.StatusBadRequest
	case errors.As(err, &serr):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &perr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.NewValidation(apperror.RuleRequest, "", "request body exceeds %d bytes", tooLarge.Limit)
	}
	if errors.Is(err, io.EOF) {
		return apperror.NewValidation(apperror.RuleRequest, "", "request body is empty")
	}
	return apperror.NewValidation(apperror.RuleRequest, "", "invalid request body: %v", err)
}

func dateQuery(c *gin.Context) string {
	if date := strings.TrimSpace(c.Query("date")); date != "" {
		return date
	}
	return keys.DateOf(time.Now())
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	if decoder.More() {
		return fmt.Errorf("unexpected data after JSON body")
	}
	return nil
}
