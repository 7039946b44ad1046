package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"phtourism/internal/middleware"
	"phtourism/internal/services"
	"phtourism/internal/shared/testutil"
	"phtourism/internal/views"
	"phtourism/pkg/contracts/domain"
)

// MockViewSource is a mock implementation of ViewSource
type MockViewSource struct {
	mock.Mock
}

func (m *MockViewSource) ViewsPayload(ctx context.Context, req services.ViewRequest) (services.Payload, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(services.Payload), args.Error(1)
}

func newTestClient(t *testing.T, source ViewSource, opts ClientOptions) (*Hub, *Client, *MockConnection) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)
	conn := NewMockConnection()
	client := NewClient(hub, conn, source, middleware.NewFilterValidator(logger), opts, logger)
	t.Cleanup(client.close)
	return hub, client, conn
}

// nextFrame waits for the next queued message and decodes it
func nextFrame(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case msg := <-c.send:
		return decodeFrame(t, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
		return nil
	}
}

func errorCode(frame map[string]interface{}) interface{} {
	detail, _ := frame["error"].(map[string]interface{})
	return detail["code"]
}

func TestClientOptions_Defaults(t *testing.T) {
	opts := ClientOptions{PongWait: 10 * time.Second, PingPeriod: 20 * time.Second}.withDefaults()

	assert.Equal(t, 10*time.Second, opts.PongWait)
	assert.Equal(t, 9*time.Second, opts.PingPeriod)
	assert.Equal(t, int64(defaultMaxMessageSize), opts.MaxMessageSize)
	assert.Equal(t, defaultSendBuffer, opts.SendBuffer)
	assert.Equal(t, defaultMaxBuilds, opts.MaxBuilds)
}

func TestClient_DeliverLastWriteWins(t *testing.T) {
	hub, c, _ := newTestClient(t, &MockViewSource{}, ClientOptions{})

	assert.True(t, c.deliver(2, []byte(`{"seq":2}`)))
	assert.False(t, c.deliver(1, []byte(`{"seq":1}`)), "older result must be dropped")
	assert.False(t, c.deliver(2, []byte(`{"seq":2}`)), "repeated seq must be dropped")
	assert.True(t, c.deliver(3, []byte(`{"seq":3}`)))

	assert.Equal(t, float64(2), nextFrame(t, c)["seq"])
	assert.Equal(t, float64(3), nextFrame(t, c)["seq"])
	assert.Empty(t, c.send)

	metrics := hub.GetHubMetrics()
	assert.Equal(t, int64(2), metrics["stale_drops"])
	assert.Equal(t, int64(2), metrics["messages_sent"])
}

func TestClient_HandleMessageRejects(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantCode string
		wantSeq  interface{}
	}{
		{name: "malformed json", message: `{"type":`, wantCode: "INVALID_REQUEST"},
		{name: "unknown type", message: `{"type":"subscribe","seq":4}`, wantCode: "VALIDATION_FAILED", wantSeq: float64(4)},
		{name: "missing seq", message: `{"type":"filters","filters":{}}`, wantCode: "VALIDATION_FAILED"},
		{name: "invalid traveler", message: `{"type":"filters","seq":7,"filters":{"traveler":"tourist"}}`, wantCode: "VALIDATION_FAILED", wantSeq: float64(7)},
		{name: "year out of range", message: `{"type":"filters","seq":8,"filters":{"years":[1800]}}`, wantCode: "VALIDATION_FAILED", wantSeq: float64(8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &MockViewSource{}
			_, c, _ := newTestClient(t, source, ClientOptions{})

			c.handleMessage([]byte(tt.message))

			frame := nextFrame(t, c)
			assert.Equal(t, TypeError, frame["type"])
			assert.Equal(t, tt.wantCode, errorCode(frame))
			assert.Equal(t, tt.wantSeq, frame["seq"])
			source.AssertNotCalled(t, "ViewsPayload", mock.Anything, mock.Anything)
		})
	}
}

func TestClient_Heartbeat(t *testing.T) {
	_, c, _ := newTestClient(t, &MockViewSource{}, ClientOptions{})

	c.handleMessage([]byte(`{"type":"heartbeat"}`))
	assert.Empty(t, c.send)
}

func TestClient_FiltersComputed(t *testing.T) {
	source := &MockViewSource{}
	want := services.ViewRequest{
		Filters: views.Filters{Years: []int{2019}, Traveler: domain.TravelerDomestic},
		Limit:   5,
	}
	source.On("ViewsPayload", mock.Anything, want).
		Return(services.Payload{Body: []byte(`{"ranked_total":4}`), ETag: `"e1"`}, nil)

	_, c, _ := newTestClient(t, source, ClientOptions{})
	c.handleMessage([]byte(`{"type":"filters","seq":1,"filters":{"years":[2019],"traveler":"domestic","limit":5}}`))

	frame := nextFrame(t, c)
	assert.Equal(t, TypeViews, frame["type"])
	assert.Equal(t, float64(1), frame["seq"])
	assert.Equal(t, `"e1"`, frame["etag"])
	assert.Equal(t, map[string]interface{}{"ranked_total": float64(4)}, frame["data"])
	source.AssertExpectations(t)
}

func TestClient_SlowResultSuperseded(t *testing.T) {
	release := make(chan time.Time)
	source := &MockViewSource{}
	source.On("ViewsPayload", mock.Anything, services.ViewRequest{Limit: 1}).
		WaitUntil(release).
		Return(services.Payload{Body: []byte(`{"first":true}`)}, nil)
	source.On("ViewsPayload", mock.Anything, services.ViewRequest{Limit: 2}).
		Return(services.Payload{Body: []byte(`{"second":true}`)}, nil)

	hub, c, _ := newTestClient(t, source, ClientOptions{})
	c.handleMessage([]byte(`{"type":"filters","seq":1,"filters":{"limit":1}}`))
	c.handleMessage([]byte(`{"type":"filters","seq":2,"filters":{"limit":2}}`))

	frame := nextFrame(t, c)
	assert.Equal(t, float64(2), frame["seq"])

	close(release)
	require.Eventually(t, func() bool {
		return hub.GetHubMetrics()["stale_drops"] == int64(1)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, c.send)
}

func TestClient_BuildsBounded(t *testing.T) {
	release := make(chan time.Time)
	source := &MockViewSource{}
	source.On("ViewsPayload", mock.Anything, services.ViewRequest{Limit: 1}).
		WaitUntil(release).
		Return(services.Payload{Body: []byte(`{"first":true}`)}, nil)
	source.On("ViewsPayload", mock.Anything, services.ViewRequest{Limit: 3}).
		Return(services.Payload{Body: []byte(`{"third":true}`)}, nil)

	hub, c, _ := newTestClient(t, source, ClientOptions{MaxBuilds: 1})
	c.handleMessage([]byte(`{"type":"filters","seq":1,"filters":{"limit":1}}`))
	c.handleMessage([]byte(`{"type":"filters","seq":2,"filters":{"limit":2}}`))
	c.handleMessage([]byte(`{"type":"filters","seq":3,"filters":{"limit":3}}`))

	c.buildMu.Lock()
	assert.Equal(t, 1, c.building)
	require.NotNil(t, c.pending)
	assert.Equal(t, int64(3), c.pending.seq, "only the newest request waits")
	c.buildMu.Unlock()

	close(release)
	assert.Equal(t, float64(1), nextFrame(t, c)["seq"])
	assert.Equal(t, float64(3), nextFrame(t, c)["seq"])

	require.Eventually(t, func() bool {
		c.buildMu.Lock()
		defer c.buildMu.Unlock()
		return c.building == 0 && c.pending == nil
	}, 2*time.Second, 10*time.Millisecond)

	source.AssertNotCalled(t, "ViewsPayload", mock.Anything, services.ViewRequest{Limit: 2})
	source.AssertNumberOfCalls(t, "ViewsPayload", 2)
	assert.Equal(t, int64(1), hub.GetHubMetrics()["stale_drops"])
}

func TestClient_OlderRequestNotQueued(t *testing.T) {
	release := make(chan time.Time)
	source := &MockViewSource{}
	source.On("ViewsPayload", mock.Anything, mock.Anything).
		WaitUntil(release).
		Return(services.Payload{Body: []byte(`{}`)}, nil)

	hub, c, _ := newTestClient(t, source, ClientOptions{MaxBuilds: 1})
	c.handleMessage([]byte(`{"type":"filters","seq":1,"filters":{"limit":1}}`))
	c.handleMessage([]byte(`{"type":"filters","seq":5,"filters":{"limit":5}}`))
	c.handleMessage([]byte(`{"type":"filters","seq":4,"filters":{"limit":4}}`))

	c.buildMu.Lock()
	require.NotNil(t, c.pending)
	assert.Equal(t, int64(5), c.pending.seq)
	c.buildMu.Unlock()
	assert.Equal(t, int64(1), hub.GetHubMetrics()["stale_drops"])

	close(release)
	assert.Equal(t, float64(1), nextFrame(t, c)["seq"])
	assert.Equal(t, float64(5), nextFrame(t, c)["seq"])
}

func TestClient_FullBufferDisconnects(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)
	c := NewClient(hub, NewMockConnection(), &MockViewSource{}, middleware.NewFilterValidator(logger), ClientOptions{SendBuffer: 1}, logger)
	t.Cleanup(c.close)

	require.True(t, c.deliver(1, []byte(`{"seq":1}`)))
	assert.False(t, c.deliver(2, []byte(`{"seq":2}`)))

	select {
	case <-c.quit:
	default:
		t.Fatal("session should be closed")
	}
	assert.ErrorIs(t, c.ctx.Err(), context.Canceled)
	assert.True(t, logs.ContainsMessage("client send buffer full, disconnecting"))

	assert.False(t, c.deliver(3, nil), "nil messages are ignored")
}

func TestClient_DatasetNotLoaded(t *testing.T) {
	source := &MockViewSource{}
	source.On("ViewsPayload", mock.Anything, mock.Anything).
		Return(services.Payload{}, services.ErrDatasetNotLoaded)

	_, c, _ := newTestClient(t, source, ClientOptions{})
	c.handleMessage([]byte(`{"type":"filters","seq":3,"filters":{}}`))

	frame := nextFrame(t, c)
	assert.Equal(t, TypeError, frame["type"])
	assert.Equal(t, float64(3), frame["seq"])
	assert.Equal(t, "DATASET_NOT_LOADED", errorCode(frame))
}

func TestClient_EnqueueAfterClose(t *testing.T) {
	_, c, _ := newTestClient(t, &MockViewSource{}, ClientOptions{SendBuffer: 1})

	assert.True(t, c.enqueue([]byte(`{}`)))
	assert.False(t, c.enqueue([]byte(`{}`)), "full buffer")

	<-c.send
	c.close()
	c.close()
	assert.False(t, c.enqueue([]byte(`{}`)), "closed session")
	assert.ErrorIs(t, c.ctx.Err(), context.Canceled)
}

func TestClient_ReadPump(t *testing.T) {
	source := &MockViewSource{}
	source.On("ViewsPayload", mock.Anything, mock.Anything).
		Return(services.Payload{Body: []byte(`{}`), ETag: `"e"`}, nil)

	hub, c, conn := newTestClient(t, source, ClientOptions{MaxMessageSize: 2048})
	hub.Start()
	defer hub.Stop()
	hub.Register(c)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.AddReadMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`), nil)
	conn.AddReadMessage(websocket.TextMessage, []byte("{\"type\":\"filters\",\n\"seq\":1}"), nil)

	// The mock reports an error once its messages run out, ending the pump
	c.ReadPump()

	assert.Equal(t, int64(2048), conn.ReadLimit)
	assert.True(t, conn.Closed)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(2), hub.GetHubMetrics()["messages_received"])
}

func TestClient_WritePump(t *testing.T) {
	_, c, conn := newTestClient(t, &MockViewSource{}, ClientOptions{})

	done := make(chan struct{})
	go func() {
		c.WritePump()
		close(done)
	}()

	require.True(t, c.enqueue([]byte(`{"type":"views","seq":1}`)))
	require.Eventually(t, func() bool { return len(conn.TextFrames()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, TypeViews, conn.TextFrames()[0]["type"])

	c.close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write pump did not stop")
	}

	written := conn.GetWrittenMessages()
	assert.Equal(t, websocket.CloseMessage, written[len(written)-1].Type)
}
