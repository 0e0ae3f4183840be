package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"laundry-backend/internal/config"
	"laundry-backend/internal/logging"
	"laundry-backend/internal/usecase"
)

// Deps are the services the HTTP layer adapts. Ping is optional.
type Deps struct {
	Orders     *usecase.OrderService
	Payments   *usecase.PaymentService
	Reconciler *usecase.Reconciler
	Auth       *usecase.AuthService
	Logger     *slog.Logger
	Ping       func(ctx context.Context) error
}

type Server struct {
	cfg    config.Config
	deps   Deps
	log    *slog.Logger
	engine *gin.Engine
}

func New(cfg config.Config, d Deps) *Server {
	registerValidators()
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		deps:   d,
		log:    log,
		engine: gin.New(),
	}
	s.engine.Use(logging.Middleware(log), gin.CustomRecovery(s.recovered), s.cors())
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/healthz", s.handleHealth)
	r.GET("/catalog", s.handleCatalog)

	orders := r.Group("/orders")
	orders.POST("/create", s.handleCreateOrder)
	orders.GET("", s.handleListOrders)
	orders.GET("/:id", s.handleGetOrder)
	orders.GET("/:id/history", s.handleOrderHistory)
	orders.GET("/:id/payment-eligibility", s.handlePaymentEligibility)
	orders.POST("/:id/cancel", s.handleCancelOrder)

	pay := r.Group("/payment")
	pay.POST("/create", s.handleCreatePayment)
	pay.POST("/webhook", s.handleWebhook)
	pay.POST("/manual-status-update", s.requireOperator(), s.handleManualStatusUpdate)
	pay.POST("/auto-check-all", s.requireOperator(), s.handleAutoCheckAll)

	if s.cfg.Env == "dev" {
		r.POST("/auth/operator-token", s.handleOperatorToken)
	}
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requireOperator guards operator routes with a bearer token. Without a
// configured secret the routes stay open.
func (s *Server) requireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.deps.Auth.Enabled() {
			c.Next()
			return
		}
		h := c.GetHeader("Authorization")
		tok, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(tok) == "" {
			s.err(c, http.StatusUnauthorized, "Unauthorized", "bearer token required")
			return
		}
		sub, err := s.deps.Auth.ParseOperatorToken(strings.TrimSpace(tok))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Set("operator", sub)
		c.Next()
	}
}

func (s *Server) recovered(c *gin.Context, p any) {
	s.log.Error("handler panicked", "path", c.Request.URL.Path, "panic", p)
	s.err(c, http.StatusInternalServerError, "ServerError", "internal error")
}

// fail maps a usecase error onto the error envelope.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		bad    usecase.ErrBadRequest
		nf     usecase.ErrNotFound
		sig    usecase.ErrSignature
		unauth usecase.ErrUnauthorized
		conf   usecase.ErrConflict
		up     *usecase.UpstreamError
		pe     *usecase.PersistenceError
		verrs  validator.ValidationErrors
	)
	switch {
	case errors.As(err, &verrs):
		s.err(c, http.StatusBadRequest, "BadRequest", validationMessage(verrs))
	case errors.As(err, &bad):
		s.err(c, http.StatusBadRequest, "BadRequest", bad.Error())
	case errors.As(err, &nf):
		s.err(c, http.StatusNotFound, "NotFound", nf.Error())
	case errors.As(err, &sig):
		s.err(c, http.StatusUnauthorized, "InvalidSignature", sig.Error())
	case errors.As(err, &unauth):
		s.err(c, http.StatusUnauthorized, "Unauthorized", unauth.Error())
	case errors.As(err, &conf):
		s.err(c, http.StatusConflict, "Conflict", conf.Error())
	case errors.As(err, &up):
		_ = c.Error(err)
		s.err(c, http.StatusBadGateway, "UpstreamError", "payment gateway unavailable, retry later")
	case errors.As(err, &pe):
		_ = c.Error(err)
		s.err(c, http.StatusInternalServerError, "PersistenceError", "gagal memperbarui status")
	default:
		_ = c.Error(err)
		s.err(c, http.StatusInternalServerError, "ServerError", "internal error")
	}
}

func validationMessage(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func (s *Server) err(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   msg,
			"requestId": logging.RequestID(c),
		},
	})
}

func (s *Server) json(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}
