package websocket

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"phtourism/internal/config"
	apperrors "phtourism/internal/errors"
	"phtourism/internal/infrastructure"
	"phtourism/internal/middleware"
)

// Handler upgrades /ws requests into dashboard sessions.
type Handler struct {
	hub       *Hub
	source    ViewSource
	validator *middleware.FilterValidator
	upgrader  websocket.Upgrader
	opts      ClientOptions
	origins   []string
	errors    *apperrors.ErrorHandler
	logger    *slog.Logger
}

// NewHandler creates the upgrade handler. An empty origin list accepts every
// origin. Failed upgrades are rendered as problem responses by errorHandler.
func NewHandler(hub *Hub, source ViewSource, validator *middleware.FilterValidator, cfg config.WebSocketConfig, origins []string, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if errorHandler == nil {
		errorHandler = apperrors.NewErrorHandler(logger, false)
	}

	h := &Handler{
		hub:       hub,
		source:    source,
		validator: validator,
		opts: ClientOptions{
			PongWait:       cfg.PongWait,
			PingPeriod:     cfg.PingPeriod,
			MaxMessageSize: cfg.MaxMessageSize,
		},
		origins: origins,
		errors:  errorHandler,
		logger:  logger.With(slog.String("handler", "websocket")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.logger.WarnContext(r.Context(), "websocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			h.errors.HandleError(w, r, apperrors.NewWithDetails(status,
				apperrors.ErrWebSocketUpgrade.ErrorCode, apperrors.ErrWebSocketUpgrade.Message, reason.Error()))
		},
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.origins) == 0 {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	h.logger.WarnContext(r.Context(), "websocket origin not allowed",
		slog.String("origin", origin),
		slog.Any("allowed_origins", h.origins))
	return false
}

// ServeHTTP upgrades the connection and starts the session pumps.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	opts := h.opts
	opts.TraceID = middleware.GetRequestID(ctx)
	client := NewClient(h.hub, NewConnectionWrapper(conn), h.source, h.validator, opts, h.logger)
	h.hub.Register(client)

	h.logger.InfoContext(ctx, "websocket client connected",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", middleware.GetRealIP(r)))

	go client.WritePump()
	go client.ReadPump()
}
