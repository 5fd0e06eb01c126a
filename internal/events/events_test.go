package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/tradetally/internal/logging"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func TestNew(t *testing.T) {
	e, err := New(TypeTradeCreated, "user_1", map[string]string{"symbol": "EURUSD"})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "tradetally.trade.created", e.Subject())
	assert.JSONEq(t, `{"symbol":"EURUSD"}`, string(e.Data))
	assert.WithinDuration(t, time.Now(), e.OccurredAt, 5*time.Second)

	_, err = New(TypeTradeCreated, "u", make(chan int))
	assert.Error(t, err)
}

func TestConnect_EmptyURLIsNop(t *testing.T) {
	p, err := Connect(context.Background(), "", nil)
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), Event{Type: TypeTradeCreated}))
	p.Close()
}

func TestNATSPublisher_Publish(t *testing.T) {
	server := startTestNATSServer(t)

	sub, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe("tradetally.>", msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	p, err := Connect(context.Background(), server.ClientURL(), logging.NewNop())
	require.NoError(t, err)
	defer p.Close()

	e, err := New(TypeMembershipChanged, "user_1", map[string]string{"membership": "pro"})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), e))

	select {
	case msg := <-msgs:
		assert.Equal(t, "tradetally.membership.changed", msg.Subject)
		var got Event
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, e.ID, got.ID)
		assert.Equal(t, "user_1", got.UserID)
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}

func TestNATSPublisher_RejectsUntypedAndCancelled(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)

	p := NewNATSPublisher(nc, nil)
	defer p.Close()

	assert.Error(t, p.Publish(context.Background(), Event{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, Event{Type: TypeTradeCreated}), context.Canceled)
}

func TestSubscribe(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- Subscribe(ctx, nc, "trade.*", func(e Event) { received <- e })
	}()

	pub := NewNATSPublisher(nc, nil)
	e, err := New(TypeTradeCreated, "u", nil)
	require.NoError(t, err)

	// The subscription is set up asynchronously; publish until it lands.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
loop:
	for {
		select {
		case got := <-received:
			assert.Equal(t, e.ID, got.ID)
			break loop
		case <-tick.C:
			require.NoError(t, pub.Publish(ctx, e))
		case <-deadline:
			t.Fatal("event not received")
		}
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error { return assert.AnError }
func (failingPublisher) Close()                               {}

func TestEmit_LogsFailures(t *testing.T) {
	logger := logging.NewTestLogger()

	Emit(context.Background(), failingPublisher{}, logger.Logger, TypeTradeCreated, "u", nil)
	logger.AssertLogged(t, zapcore.WarnLevel, "publish event failed")

	Emit(context.Background(), nil, logger.Logger, TypeTradeCreated, "u", nil)
}
