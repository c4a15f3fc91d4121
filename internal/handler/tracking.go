package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"fulfillment/internal/service"
)

const (
	writeWait           = 5 * time.Second
	defaultPollInterval = 10 * time.Second
)

// TrackingHandler streams live delivery status over a WebSocket.
type TrackingHandler struct {
	fulfillmentService *service.FulfillmentService
	pollInterval       time.Duration
	upgrader           websocket.Upgrader
	log                *slog.Logger
}

// NewTrackingHandler creates a new TrackingHandler. allowedOrigin is the
// storefront origin; "*" accepts any origin.
func NewTrackingHandler(fulfillmentService *service.FulfillmentService, pollInterval time.Duration, allowedOrigin string, log *slog.Logger) *TrackingHandler {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &TrackingHandler{
		fulfillmentService: fulfillmentService,
		pollInterval:       pollInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
		log: log,
	}
}

// StreamError is the last frame sent before closing a failed stream.
type StreamError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Stream handles GET /api/porter/track_order/:order_id/stream
// Each frame is the delivery gateway's tracking document, unchanged.
func (h *TrackingHandler) Stream(c *gin.Context) {
	orderID := c.Param("order_id")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.log.Warn("tracking stream upgrade failed", "order_id", orderID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client only ever closes; reading surfaces that.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		payload, err := h.fulfillmentService.TrackOrder(ctx, orderID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.log.Warn("tracking stream upstream error", "order_id", orderID, "error", err)
			h.closeWithError(conn, err)
			return
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *TrackingHandler) closeWithError(conn *websocket.Conn, err error) {
	deadline := time.Now().Add(writeWait)

	_ = conn.SetWriteDeadline(deadline)
	_ = conn.WriteJSON(StreamError{
		Status:  mapErrorToHTTPStatus(err),
		Message: errorMessage(err),
	})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "tracking unavailable"),
		deadline,
	)
}
