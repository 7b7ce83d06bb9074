package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/logging"
	"github.com/ecoshop/ecoshop/internal/usecase"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

const streamWriteTimeout = 10 * time.Second

// ProductService resolves product submissions and their analysis tasks
type ProductService interface {
	Submit(ctx context.Context, info domain.ProductInfo) (*usecase.SubmitResult, error)
	Task(id string) (domain.AnalysisTask, error)
	Subscribe(id string) (<-chan domain.TaskEvent, func(), error)
}

// BrandService serves brand-level ESG data
type BrandService interface {
	Lookup(ctx context.Context, brand string) (*domain.BrandScore, error)
	List() []domain.Alternative
	Categories() []domain.ProductCategory
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	products ProductService
	brands   BrandService
	logger   logrus.FieldLogger
	upgrader websocket.Upgrader
}

// NewHandler creates a new HTTP handler.
// A nil product or brand service makes the matching endpoints answer 503.
func NewHandler(products ProductService, brands BrandService, logger logrus.FieldLogger) *Handler {
	return &Handler{
		products: products,
		brands:   brands,
		logger:   logging.Component(logger, "http"),
		upgrader: websocket.Upgrader{
			// the extension connects from a chrome-extension:// origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "ecoshop-backend",
		"version": Version,
	})
}

// SubmitProduct handles POST /api/product
func (h *Handler) SubmitProduct(c *gin.Context) {
	if h.products == nil {
		c.JSON(http.StatusServiceUnavailable, domain.SubmitResponse{Error: "Product analysis not configured"})
		return
	}

	var info domain.ProductInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, domain.SubmitResponse{Error: "Invalid JSON body"})
		return
	}
	if !info.Dispatchable() {
		c.JSON(http.StatusBadRequest, domain.SubmitResponse{Error: "Product brand or name is required"})
		return
	}

	result, err := h.products.Submit(c.Request.Context(), info)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.WithError(err).WithField("url", info.URL).Error("Product submission failed")
		}
		c.JSON(status, domain.SubmitResponse{Error: messageFor(err)})
		return
	}

	if result.Status == domain.WireStatusFound {
		c.JSON(http.StatusOK, domain.SubmitResponse{
			Success: true,
			Status:  domain.WireStatusFound,
			Data:    result.Payload,
		})
		return
	}

	c.JSON(http.StatusAccepted, domain.SubmitResponse{
		Success:   true,
		Status:    domain.WireStatusProcessing,
		ProductID: result.TaskID,
	})
}

// ProductStatus handles GET /api/product/:id/status
func (h *Handler) ProductStatus(c *gin.Context) {
	if h.products == nil {
		c.JSON(http.StatusServiceUnavailable, domain.StatusResponse{Status: domain.WireStatusError, Error: "Product analysis not configured"})
		return
	}

	task, err := h.products.Task(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), domain.StatusResponse{Status: domain.WireStatusError, Error: messageFor(err)})
		return
	}

	c.JSON(http.StatusOK, domain.StatusResponse{
		Success: true,
		Status:  task.Status.Wire(),
		Data:    task.Result,
		Error:   task.Error,
	})
}

// StreamProduct handles GET /api/product/:id/stream.
// It upgrades to a websocket and writes the task snapshot and every later event
// until the task is terminal.
func (h *Handler) StreamProduct(c *gin.Context) {
	if h.products == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Product analysis not configured"})
		return
	}

	id := c.Param("id")
	events, cancel, err := h.products.Subscribe(id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"success": false, "error": messageFor(err)})
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	// the reader only notices a client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log := h.logger.WithField("task_id", id)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(streamWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				log.WithError(err).Debug("Task stream write failed")
				return
			}
		case <-gone:
			log.Debug("Task stream client disconnected")
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

// BrandScore handles GET /api/score?brand=
func (h *Handler) BrandScore(c *gin.Context) {
	if h.brands == nil {
		c.JSON(http.StatusServiceUnavailable, domain.ScoreResponse{Error: "Brand data not configured"})
		return
	}

	brand := c.Query("brand")
	if brand == "" {
		c.JSON(http.StatusBadRequest, domain.ScoreResponse{Error: "Missing brand parameter"})
		return
	}

	score, err := h.brands.Lookup(c.Request.Context(), brand)
	if err != nil {
		c.JSON(statusFor(err), domain.ScoreResponse{Error: messageFor(err)})
		return
	}

	c.JSON(http.StatusOK, domain.ScoreResponse{Success: true, Data: score})
}

// ListBrands handles GET /api/brands
func (h *Handler) ListBrands(c *gin.Context) {
	if h.brands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Brand data not configured"})
		return
	}
	brands := h.brands.List()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(brands),
		"data":    brands,
	})
}

// ListCategories handles GET /api/categories
func (h *Handler) ListCategories(c *gin.Context) {
	if h.brands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Brand data not configured"})
		return
	}
	categories := h.brands.Categories()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(categories),
		"data":    categories,
	})
}

// Contribute handles POST /api/contribute.
// Observations are only logged for now.
func (h *Handler) Contribute(c *gin.Context) {
	var contribution domain.Contribution
	if err := c.ShouldBindJSON(&contribution); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "brand and observation are required"})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"brand": contribution.Brand,
		"url":   contribution.URL,
	}).Infof("Received contribution: %s", contribution.Observation)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Thank you for your contribution!",
	})
}

// statusFor maps a service error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrBrandNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// messageFor returns the client-facing error text. Internal details stay in the logs.
func messageFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return "Invalid request: " + err.Error()
	case errors.Is(err, domain.ErrTaskNotFound):
		return "Product analysis not found"
	case errors.Is(err, domain.ErrBrandNotFound):
		return "No sustainability data found for this brand"
	case errors.Is(err, domain.ErrProductNotFound):
		return "Product not found"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "Product database unavailable"
	}
	return "Internal server error"
}
