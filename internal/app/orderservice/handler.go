package orderservice

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thudocloud/food-ordering-platform/internal/adapter/pricing"
	"github.com/thudocloud/food-ordering-platform/internal/domain/orders"
	"github.com/thudocloud/food-ordering-platform/internal/ports"
	"github.com/thudocloud/food-ordering-platform/internal/shared/logger"
)

// HealthProbes checks connectivity of each dependency for GET /health.
type HealthProbes struct {
	DB    func(ctx context.Context) error
	Cache func(ctx context.Context) error
	Queue func(ctx context.Context) error
}

// Handler adapts HTTP requests to the OrderService.
type Handler struct {
	svc     ports.OrderService
	pricing ports.PricingClient
	probes  HealthProbes
	logger  *logger.Logger
}

// NewRouter builds the gin engine with all order routes mounted.
func NewRouter(svc ports.OrderService, pricingClient ports.PricingClient, probes HealthProbes, log *logger.Logger) *gin.Engine {
	handler := &Handler{svc: svc, pricing: pricingClient, probes: probes, logger: log}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(requestID(log))

	router.GET("/health", handler.health)
	router.GET("/menu", handler.menu)
	router.GET("/stats", handler.stats)
	router.POST("/orders", handler.createOrder)
	router.GET("/orders", handler.listOrders)
	router.GET("/orders/:number", handler.getOrder)
	router.PATCH("/orders/:number/status", handler.updateStatus)
	router.DELETE("/orders/:number", handler.cancelOrder)

	return router
}

// requestID assigns each request an id carried through logs and downstream calls.
func requestID(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(log.WithRequestID(c.Request.Context(), rid))
		c.Header("X-Request-ID", rid)
		c.Next()
	}
}

// --- Request/Response DTOs (HTTP boundary) ---

type createOrderRequest struct {
	CustomerName    string              `json:"customer_name"`
	CustomerEmail   string              `json:"customer_email"`
	CustomerPhone   *string             `json:"customer_phone,omitempty"`
	DeliveryAddress *string             `json:"delivery_address,omitempty"`
	Notes           *string             `json:"notes,omitempty"`
	Items           []createItemRequest `json:"items"`
}

type createItemRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type itemResponse struct {
	ItemID    string  `json:"item_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

type orderResponse struct {
	ID              int64          `json:"id"`
	OrderNumber     string         `json:"order_number"`
	CustomerName    string         `json:"customer_name"`
	CustomerEmail   string         `json:"customer_email"`
	CustomerPhone   *string        `json:"customer_phone"`
	DeliveryAddress *string        `json:"delivery_address"`
	Items           []itemResponse `json:"items"`
	Subtotal        float64        `json:"subtotal"`
	Tax             float64        `json:"tax"`
	Total           float64        `json:"total"`
	Status          string         `json:"status"`
	Notes           *string        `json:"notes"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
}

func toOrderResponse(order *orders.Order) orderResponse {
	items := make([]itemResponse, len(order.Items))
	for i, it := range order.Items {
		items[i] = itemResponse{
			ItemID:    it.ItemID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.InexactFloat64(),
			Subtotal:  it.Subtotal.InexactFloat64(),
		}
	}
	return orderResponse{
		ID:              order.ID,
		OrderNumber:     order.Number,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		CustomerPhone:   order.CustomerPhone,
		DeliveryAddress: order.DeliveryAddress,
		Items:           items,
		Subtotal:        order.Subtotal.InexactFloat64(),
		Tax:             order.Tax.InexactFloat64(),
		Total:           order.Total.InexactFloat64(),
		Status:          string(order.Status),
		Notes:           order.Notes,
		CreatedAt:       order.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       order.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// --- Handlers ---

func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
		return
	}

	cmd := ports.CreateOrderCommand{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
		Items:           make([]ports.ItemRequest, len(req.Items)),
	}
	for i, it := range req.Items {
		cmd.Items[i] = ports.ItemRequest{ItemID: it.ItemID, Quantity: it.Quantity}
	}

	order, queued, err := h.svc.CreateOrder(c.Request.Context(), cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order created successfully",
		"order":   toOrderResponse(order),
		"queued":  queued,
	})
}

func (h *Handler) getOrder(c *gin.Context) {
	order, cached, err := h.svc.GetOrder(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":  toOrderResponse(order),
		"cached": cached,
	})
}

func (h *Handler) listOrders(c *gin.Context) {
	filter := ports.OrderFilter{Limit: 50}

	if raw := c.Query("status"); raw != "" {
		status, ok := orders.ParseStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status: " + raw})
			return
		}
		filter.Status = &status
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
			return
		}
		filter.Offset = n
	}

	page, total, err := h.svc.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]orderResponse, len(page))
	for i := range page {
		views[i] = toOrderResponse(&page[i])
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": views,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status field required"})
		return
	}

	status, ok := orders.ParseStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status: " + req.Status})
		return
	}

	order, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("number"), status)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order status updated",
		"order":   toOrderResponse(order),
	})
}

func (h *Handler) cancelOrder(c *gin.Context) {
	order, err := h.svc.CancelOrder(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order cancelled successfully",
		"order":   toOrderResponse(order),
	})
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	breakdown := make(map[string]int64, len(orders.AllStatuses))
	for _, status := range orders.AllStatuses {
		breakdown[string(status)] = stats.ByStatus[status]
	}
	c.JSON(http.StatusOK, gin.H{
		"total_orders":     stats.TotalOrders,
		"status_breakdown": breakdown,
		"total_revenue":    stats.TotalRevenue.InexactFloat64(),
	})
}

func (h *Handler) menu(c *gin.Context) {
	raw, err := h.pricing.Menu(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	report := gin.H{"status": "healthy", "service": "order-service"}
	healthy := true

	check := func(name string, probe func(ctx context.Context) error) {
		if probe == nil {
			return
		}
		if err := probe(ctx); err != nil {
			report[name] = "unreachable: " + err.Error()
			healthy = false
		} else {
			report[name] = "connected"
		}
	}
	check("database", h.probes.DB)
	check("redis", h.probes.Cache)
	check("rabbitmq", h.probes.Queue)

	if !healthy {
		report["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, report)
		return
	}
	c.JSON(http.StatusOK, report)
}

// writeError maps domain errors to HTTP statuses: validation and rejected
// transitions are 400, missing orders and unknown items 404, pricing
// timeouts 504, pricing outages 503, store failures 500.
func (h *Handler) writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	var (
		validationErr *orders.ValidationError
		transitionErr *orders.TransitionError
		dependencyErr *orders.DependencyError
		itemErr       *pricing.ItemNotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &transitionErr):
		h.logger.Warn(ctx, "cancel_rejected", transitionErr.Error(), map[string]any{"order_number": transitionErr.Number})
		c.JSON(http.StatusBadRequest, gin.H{"error": transitionErr.Error()})
	case errors.As(err, &itemErr):
		c.JSON(http.StatusNotFound, gin.H{"error": itemErr.Error()})
	case errors.Is(err, orders.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.As(err, &dependencyErr):
		h.logger.Error(ctx, "dependency_failed", dependencyErr.Error(), err)
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": dependencyErr.Service + " service timeout"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": dependencyErr.Service + " service unavailable"})
	default:
		h.logger.Error(ctx, "request_failed", "Internal server error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
