package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"laundry-backend/internal/domain"
	"laundry-backend/internal/infrastructure/midtrans"
	"laundry-backend/internal/usecase"
)

const maxWebhookBody = 1 << 20

func (s *Server) handleHealth(c *gin.Context) {
	if s.deps.Ping != nil {
		if err := s.deps.Ping(c.Request.Context()); err != nil {
			s.log.Error("health check failed", "err", err)
			s.err(c, http.StatusServiceUnavailable, "Unavailable", "database unreachable")
			return
		}
	}
	s.json(c, http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCatalog(c *gin.Context) {
	cat, err := s.deps.Orders.ListCatalog(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, cat)
}

type createOrderItemReq struct {
	ItemTypeID string `json:"itemTypeId" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,gt=0,lte=1000"`
}

type createOrderReq struct {
	UserID          string               `json:"userId"`
	ServiceTypeID   string               `json:"serviceTypeId" binding:"required"`
	WeightKg        float64              `json:"weightKg" binding:"omitempty,gt=0,lte=100"`
	Items           []createOrderItemReq `json:"items" binding:"omitempty,dive"`
	PickupDate      string               `json:"pickupDate" binding:"required"`
	PickupTime      string               `json:"pickupTime"`
	DeliveryDate    string               `json:"deliveryDate"`
	DeliveryTime    string               `json:"deliveryTime"`
	PickupAddress   string               `json:"pickupAddress" binding:"required,max=500"`
	DeliveryAddress string               `json:"deliveryAddress" binding:"max=500"`
	CustomerName    string               `json:"customerName" binding:"required,max=100"`
	CustomerPhone   string               `json:"customerPhone" binding:"required,idphone"`
	Notes           string               `json:"notes" binding:"max=500"`
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindFailed(c, err)
		return
	}
	pickup, err := parseDate(req.PickupDate)
	if err != nil {
		s.err(c, http.StatusBadRequest, "BadRequest", "pickupDate must be YYYY-MM-DD")
		return
	}
	in := usecase.CreateOrderInput{
		UserID:          req.UserID,
		ServiceTypeID:   req.ServiceTypeID,
		WeightKg:        req.WeightKg,
		PickupDate:      pickup,
		PickupTime:      req.PickupTime,
		DeliveryTime:    req.DeliveryTime,
		PickupAddress:   req.PickupAddress,
		DeliveryAddress: req.DeliveryAddress,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		Notes:           req.Notes,
	}
	if req.DeliveryDate != "" {
		d, err := parseDate(req.DeliveryDate)
		if err != nil {
			s.err(c, http.StatusBadRequest, "BadRequest", "deliveryDate must be YYYY-MM-DD")
			return
		}
		in.DeliveryDate = &d
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, usecase.ItemInput{ItemTypeID: it.ItemTypeID, Quantity: it.Quantity})
	}
	o, err := s.deps.Orders.Create(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusCreated, gin.H{
		"orderId":         o.ID,
		"orderNumber":     o.OrderNumber,
		"totalPrice":      o.TotalPrice,
		"paymentDeadline": o.PaymentDeadline(),
	})
}

// orderView adds the derived payment-window fields to an order.
type orderView struct {
	*domain.Order
	CanPay          bool      `json:"canPay"`
	Expired         bool      `json:"expired"`
	PaymentDeadline time.Time `json:"paymentDeadline"`
}

func (s *Server) view(o *domain.Order) orderView {
	now := time.Now().UTC()
	return orderView{Order: o, CanPay: o.CanPay(now), Expired: o.IsExpired(now), PaymentDeadline: o.PaymentDeadline()}
}

func (s *Server) handleGetOrder(c *gin.Context) {
	o, err := s.deps.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, s.view(o))
}

func (s *Server) handleListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	orders, total, err := s.deps.Orders.List(c.Request.Context(), page, size)
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]orderView, 0, len(orders))
	for i := range orders {
		views = append(views, s.view(&orders[i]))
	}
	s.json(c, http.StatusOK, gin.H{"orders": views, "total": total, "page": page, "pageSize": size})
}

func (s *Server) handleOrderHistory(c *gin.Context) {
	h, err := s.deps.Orders.StatusHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if h == nil {
		h = []domain.StatusHistory{}
	}
	s.json(c, http.StatusOK, gin.H{"history": h})
}

func (s *Server) handlePaymentEligibility(c *gin.Context) {
	o, err := s.deps.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	now := time.Now().UTC()
	remaining := o.PaymentDeadline().Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	s.json(c, http.StatusOK, gin.H{
		"orderId":          o.ID,
		"paymentStatus":    o.PaymentStatus,
		"canPay":           o.CanPay(now),
		"expired":          o.IsExpired(now),
		"paymentDeadline":  o.PaymentDeadline(),
		"remainingSeconds": int64(remaining / time.Second),
	})
}

type cancelReq struct {
	Reason string `json:"reason" binding:"max=500"`
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	var req cancelReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			s.bindFailed(c, err)
			return
		}
	}
	o, err := s.deps.Orders.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, gin.H{"success": true, "order": s.view(o)})
}

type orderIDReq struct {
	OrderID string `json:"orderId" binding:"required"`
}

func (s *Server) handleCreatePayment(c *gin.Context) {
	var req orderIDReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindFailed(c, err)
		return
	}
	sess, err := s.deps.Payments.Create(c.Request.Context(), req.OrderID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, sess)
}

func (s *Server) handleWebhook(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		s.err(c, http.StatusBadRequest, "BadRequest", "unreadable body")
		return
	}
	var n midtrans.TransactionStatus
	if err := json.Unmarshal(raw, &n); err != nil {
		s.err(c, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	res, err := s.deps.Reconciler.HandleNotification(c.Request.Context(), n, raw, c.GetHeader("x-signature"))
	if err != nil {
		s.fail(c, err)
		return
	}
	msg := "Order status updated"
	if res.Outcome != usecase.OutcomeUpdated {
		msg = "Order status unchanged"
		if res.Reason != "" {
			msg += ": " + res.Reason
		}
	}
	s.json(c, http.StatusOK, gin.H{
		"message":        msg,
		"order_status":   res.NewStatus,
		"payment_status": res.NewPaymentStatus,
	})
}

func (s *Server) handleManualStatusUpdate(c *gin.Context) {
	var req orderIDReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindFailed(c, err)
		return
	}
	res, err := s.deps.Reconciler.CheckOrder(c.Request.Context(), req.OrderID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, gin.H{
		"success":         true,
		"order":           s.view(res.Order),
		"midtrans_status": res.GatewayStatus,
		"fraud_status":    res.FraudStatus,
		"outcome":         res.Outcome,
		"reason":          res.Reason,
	})
}

func (s *Server) handleAutoCheckAll(c *gin.Context) {
	rep, err := s.deps.Reconciler.Sweep(c.Request.Context())
	if err != nil && rep == nil {
		s.fail(c, err)
		return
	}
	body := gin.H{
		"success": err == nil,
		"checked": rep.Checked,
		"updated": rep.Updated,
		"errors":  rep.Errors,
		"results": rep.Results,
	}
	if err != nil {
		body["message"] = "sweep interrupted: " + err.Error()
	}
	s.json(c, http.StatusOK, body)
}

type operatorTokenReq struct {
	Subject    string `json:"subject" binding:"required"`
	TTLSeconds int    `json:"ttlSeconds" binding:"omitempty,gt=0,lte=86400"`
}

func (s *Server) handleOperatorToken(c *gin.Context) {
	var req operatorTokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindFailed(c, err)
		return
	}
	if !s.deps.Auth.Enabled() {
		s.err(c, http.StatusBadRequest, "BadRequest", "jwt secret not configured")
		return
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	tok, err := s.deps.Auth.IssueOperatorToken(req.Subject, ttl)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, gin.H{"token": tok})
}

func (s *Server) bindFailed(c *gin.Context, err error) {
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		s.err(c, http.StatusBadRequest, "BadRequest", "request body required")
	case errors.As(err, &syn), errors.As(err, &typ):
		s.err(c, http.StatusBadRequest, "BadRequest", "invalid json")
	default:
		s.fail(c, err)
	}
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
