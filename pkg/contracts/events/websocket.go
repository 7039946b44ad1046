// Package events defines the messages exchanged with dashboard clients over
// the WebSocket session.
package events

import (
	"encoding/json"
	"time"
)

// Message types
const (
	TypeConnection      = "connection"
	TypeFilters         = "filters"
	TypeViews           = "views"
	TypeError           = "error"
	TypeHeartbeat       = "heartbeat"
	TypeDatasetReloaded = "dataset_reloaded"
)

// Envelope is the frame used for server initiated messages
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// NewEnvelope stamps a message with the current time.
func NewEnvelope(messageType string, data interface{}) Envelope {
	return Envelope{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// ConnectionInfo is sent once when a session opens
type ConnectionInfo struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id"`
}

// DatasetReloaded announces a newly loaded dataset. Clients keep their
// sessions and re-send filters to refresh.
type DatasetReloaded struct {
	Fingerprint string `json:"fingerprint"`
	LoadedAt    string `json:"loaded_at"`
	Skipped     int    `json:"skipped"`
	Unmatched   int    `json:"unmatched"`
}

// ViewsMessage carries the payload computed for one filters request
type ViewsMessage struct {
	Type string          `json:"type"`
	Seq  int64           `json:"seq"`
	ETag string          `json:"etag"`
	Data json.RawMessage `json:"data"`
}

// ErrorMessage reports a failed request. Seq is omitted when the request
// could not be decoded.
type ErrorMessage struct {
	Type  string      `json:"type"`
	Seq   int64       `json:"seq,omitempty"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail mirrors the error_code and details of the HTTP problem responses
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
