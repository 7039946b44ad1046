package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	apierrors "phtourism/internal/errors"
	"phtourism/internal/infrastructure"
	"phtourism/internal/middleware"
	"phtourism/internal/services"
	"phtourism/pkg/contracts/events"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 4096
	defaultSendBuffer     = 64
	defaultMaxBuilds      = 2
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// ClientOptions tunes a client connection. Zero values use the defaults.
type ClientOptions struct {
	TraceID        string
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBuffer     int
	// MaxBuilds bounds the views builds running at once for the session
	MaxBuilds int
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	// Pings must go out before the peer's pong deadline
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	if o.MaxBuilds <= 0 {
		o.MaxBuilds = defaultMaxBuilds
	}
	return o
}

// Client is one dashboard session. It is a middleman between the websocket
// connection and the hub, and computes views for the filters it receives.
// Results are delivered last-write-wins: a result is sent only when its
// sequence number is newer than the last one sent.
type Client struct {
	hub *Hub

	// The websocket connection
	conn Connection

	// Buffered channel of outbound messages. It is never closed; quit marks
	// the end of the session.
	send      chan []byte
	quit      chan struct{}
	closeOnce sync.Once

	source    ViewSource
	validator *middleware.FilterValidator
	opts      ClientOptions

	// ctx is cancelled when the session ends
	ctx    context.Context
	cancel context.CancelFunc

	// mu guards lastDelivered and orders deliveries
	mu            sync.Mutex
	lastDelivered int64

	// buildMu guards building and pending. When every build slot is busy
	// only the newest request waits.
	buildMu  sync.Mutex
	building int
	pending  *filterRequest

	// Client metadata
	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	logger *slog.Logger
}

// inboundMessage is a client request
type inboundMessage struct {
	Type    string                 `json:"type"`
	Seq     int64                  `json:"seq"`
	Filters middleware.FilterQuery `json:"filters"`
}

type filterRequest struct {
	seq   int64
	query middleware.FilterQuery
}

// NewClient creates a session over conn. The hub, source and validator must
// not be nil.
func NewClient(hub *Hub, conn Connection, source ViewSource, validator *middleware.FilterValidator, opts ClientOptions, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	opts = opts.withDefaults()

	id := uuid.New().String()
	traceID := opts.TraceID
	if traceID == "" {
		traceID = id
	}

	ctx, cancel := context.WithCancel(infrastructure.WithTraceID(context.Background(), traceID))
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, opts.SendBuffer),
		quit:        make(chan struct{}),
		source:      source,
		validator:   validator,
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
		),
	}
}

// ID returns the session id
func (c *Client) ID() string {
	return c.id
}

func (c *Client) context() context.Context {
	return c.ctx
}

// enqueue queues a message without blocking. It reports false when the
// session is over or its buffer is full.
func (c *Client) enqueue(message []byte) bool {
	if message == nil {
		return false
	}
	select {
	case <-c.quit:
		return false
	default:
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		c.cancel()
	})
}

// ReadPump reads client requests until the connection fails
func (c *Client) ReadPump() {
	defer func() {
		c.logger.InfoContext(c.ctx, "websocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)))
		c.hub.Unregister(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.ErrorContext(c.ctx, "unexpected websocket close", slog.String("error", err.Error()))
			}
			return
		}
		c.hub.recordReceived()
		c.handleMessage(bytes.TrimSpace(bytes.ReplaceAll(message, newline, space)))
	}
}

// handleMessage dispatches one client request. Filters are computed off the
// read loop, at most MaxBuilds at a time.
func (c *Client) handleMessage(message []byte) {
	var in inboundMessage
	if err := json.Unmarshal(message, &in); err != nil {
		c.logger.DebugContext(c.ctx, "malformed client message", slog.String("error", err.Error()))
		c.enqueue(c.encodeError(0, apierrors.InvalidRequestWithError(err)))
		return
	}

	switch in.Type {
	case TypeHeartbeat:
		c.logger.DebugContext(c.ctx, "heartbeat received")
	case TypeFilters:
		if in.Seq <= 0 {
			c.enqueue(c.encodeError(0, apierrors.ErrValidation("seq", "seq must be a positive integer")))
			return
		}
		if err := c.validator.Validate(in.Filters); err != nil {
			c.deliver(in.Seq, c.encodeError(in.Seq, err))
			return
		}
		c.schedule(filterRequest{seq: in.Seq, query: in.Filters})
	default:
		c.enqueue(c.encodeError(in.Seq, apierrors.ErrValidation("type", "type must be one of: filters, heartbeat")))
	}
}

// schedule starts a build when a slot is free. Otherwise the request replaces
// any older pending one, which is counted as superseded.
func (c *Client) schedule(req filterRequest) {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	if c.building < c.opts.MaxBuilds {
		c.building++
		go c.build(req)
		return
	}

	if c.pending != nil && c.pending.seq >= req.seq {
		c.hub.recordDelivery(c.ctx, false)
		return
	}
	if c.pending != nil {
		c.logger.DebugContext(c.ctx, "pending request superseded",
			slog.Int64("seq", c.pending.seq),
			slog.Int64("newer_seq", req.seq))
		c.hub.recordDelivery(c.ctx, false)
	}
	c.pending = &req
}

// build runs req, then keeps taking the pending request until none is left
// or the session ends.
func (c *Client) build(req filterRequest) {
	for {
		c.runFilters(req.seq, req.query)

		c.buildMu.Lock()
		next := c.pending
		c.pending = nil
		if next == nil || c.ctx.Err() != nil {
			c.building--
			c.buildMu.Unlock()
			return
		}
		c.buildMu.Unlock()
		req = *next
	}
}

func (c *Client) runFilters(seq int64, q middleware.FilterQuery) {
	payload, err := c.source.ViewsPayload(c.ctx, services.ViewRequest{Filters: q.Filters(), Limit: q.Limit})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.WarnContext(c.ctx, "views for session failed",
			slog.Int64("seq", seq),
			slog.String("error", err.Error()))
		c.deliver(seq, c.encodeError(seq, err))
		return
	}

	message, err := json.Marshal(events.ViewsMessage{Type: TypeViews, Seq: seq, ETag: payload.ETag, Data: payload.Body})
	if err != nil {
		c.logger.ErrorContext(c.ctx, "marshal views message", slog.String("error", err.Error()))
		return
	}
	c.deliver(seq, message)
}

// deliver sends the result of request seq unless a newer result already went
// out.
func (c *Client) deliver(seq int64, message []byte) bool {
	if message == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq <= c.lastDelivered {
		c.logger.DebugContext(c.ctx, "dropping superseded result",
			slog.Int64("seq", seq),
			slog.Int64("last_delivered", c.lastDelivered))
		c.hub.recordDelivery(c.ctx, false)
		return false
	}
	if !c.enqueue(message) {
		c.dropSlow()
		return false
	}
	c.lastDelivered = seq
	c.hub.recordDelivery(c.ctx, true)
	return true
}

// dropSlow ends a session whose send buffer is full. A session that is
// already over is left alone.
func (c *Client) dropSlow() {
	select {
	case <-c.quit:
		return
	default:
	}
	c.logger.WarnContext(c.ctx, "client send buffer full, disconnecting")
	c.close()
}

func (c *Client) encodeError(seq int64, err error) []byte {
	detail := events.ErrorDetail{Code: "INTERNAL_SERVER_ERROR", Message: "views could not be computed"}

	var apiErr *apierrors.APIError
	var appErr *apierrors.AppError
	switch {
	case errors.Is(err, services.ErrDatasetNotLoaded):
		detail = events.ErrorDetail{Code: apierrors.ErrDatasetNotLoaded.ErrorCode, Message: apierrors.ErrDatasetNotLoaded.Message}
	case errors.As(err, &apiErr):
		detail = events.ErrorDetail{Code: apiErr.ErrorCode, Message: apiErr.Message, Details: apiErr.Details}
	case errors.As(err, &appErr) && appErr.Type == apierrors.ErrTypeValidation:
		detail = events.ErrorDetail{Code: "VALIDATION_FAILED", Message: appErr.Message}
	}

	message, mErr := json.Marshal(events.ErrorMessage{Type: TypeError, Seq: seq, Error: detail})
	if mErr != nil {
		c.logger.ErrorContext(c.ctx, "marshal error message", slog.String("error", mErr.Error()))
		return nil
	}
	return message
}

// WritePump pumps messages from the send buffer to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.quit:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.ErrorContext(c.ctx, "write websocket message", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(c.ctx, "send ping", slog.String("error", err.Error()))
				return
			}
		}
	}
}
