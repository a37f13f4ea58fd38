package bridge_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybus/eventbus/bridge"
	"github.com/relaybus/eventbus/internal/bus"
	"github.com/relaybus/eventbus/internal/bus/config"
	buserrors "github.com/relaybus/eventbus/internal/bus/errors"
	"github.com/relaybus/eventbus/internal/bus/logging"
)

func newTestBus(t *testing.T) *bus.Bus {
	t.Helper()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	b := bus.NewBus(config.Config{}.WithDefaults(), log)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

// fakeBridge records forwarded messages and lets the test synthesize
// inbound traffic by calling relay directly against the attached bus.
type fakeBridge struct {
	mu        sync.Mutex
	forwarded []*bus.Message
	closed    bool
}

func (f *fakeBridge) Forward(ctx context.Context, address string, msg *bus.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwarded = append(f.forwarded, msg)
	return nil
}

func (f *fakeBridge) Listen(ctx context.Context, address string, localBus *bus.Bus) error {
	return nil
}

func (f *fakeBridge) Capabilities() bridge.Capabilities {
	return bridge.Capabilities{Name: "fake"}
}

func (f *fakeBridge) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeBridge) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.forwarded)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond())
}

// requireNoHandlers checks that an emission reached local dispatch and
// found no local consumer; the bridge interceptor forwards it regardless.
func requireNoHandlers(t *testing.T, err error) {
	t.Helper()
	var replyErr *buserrors.ReplyError
	require.ErrorAs(t, err, &replyErr)
	assert.Equal(t, buserrors.FailureNoHandlers, replyErr.Type)
}

func TestAttachForwardsOutboundMessages(t *testing.T) {
	b := newTestBus(t)
	fb := &fakeBridge{}

	detach, err := bridge.Attach(context.Background(), b, "orders.created", fb)
	require.NoError(t, err)
	t.Cleanup(detach)

	requireNoHandlers(t, b.Publish("orders.created", "hello", nil))

	waitFor(t, func() bool { return fb.count() == 1 })
}

func TestAttachIgnoresOtherAddresses(t *testing.T) {
	b := newTestBus(t)
	fb := &fakeBridge{}

	detach, err := bridge.Attach(context.Background(), b, "orders.created", fb)
	require.NoError(t, err)
	t.Cleanup(detach)

	received := make(chan struct{}, 1)
	_, err = b.Consumer("orders.other", nil, func(msg *bus.Message) {
		received <- struct{}{}
	})
	require.NoError(t, err)
	require.NoError(t, b.Publish("orders.other", "hello", nil))

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("consumer never received message")
	}
	assert.Equal(t, 0, fb.count())
}

func TestRelayInboundDoesNotReforwardThroughBridge(t *testing.T) {
	b := newTestBus(t)
	fb := &fakeBridge{}

	detach, err := bridge.Attach(context.Background(), b, "orders.created", fb)
	require.NoError(t, err)
	t.Cleanup(detach)

	received := make(chan *bus.Message, 1)
	_, err = b.Consumer("orders.created", nil, func(msg *bus.Message) {
		received <- msg
	})
	require.NoError(t, err)

	require.NoError(t, b.RelayInbound("orders.created", []byte("relayed"), "string", nil))

	select {
	case msg := <-received:
		assert.Equal(t, []byte("relayed"), msg.Body)
	case <-time.After(time.Second):
		t.Fatal("consumer never received relayed message")
	}

	assert.Equal(t, 0, fb.count(), "a bridge-originated message must not be forwarded back out")
}

func TestAttachDetachStopsForwarding(t *testing.T) {
	b := newTestBus(t)
	fb := &fakeBridge{}

	detach, err := bridge.Attach(context.Background(), b, "orders.created", fb)
	require.NoError(t, err)

	requireNoHandlers(t, b.Publish("orders.created", "hello", nil))
	waitFor(t, func() bool { return fb.count() == 1 })

	detach()
	assert.True(t, fb.closed)

	requireNoHandlers(t, b.Publish("orders.created", "hello again", nil))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, fb.count())
}

func TestWatermillBridgeForwardEncodesHeaders(t *testing.T) {
	pub := &recordingPublisher{}
	sub := &closedSubscriber{}
	br := bridge.New(bridge.Driver{Publisher: pub, Subscriber: sub, Caps: bridge.KafkaCapabilities}, watermill.NopLogger{})

	msg := &bus.Message{
		Address:   "orders.created",
		Body:      []byte(`{"ok":true}`),
		CodecName: "json",
		Headers:   bus.NewHeaders("trace-id", "abc"),
	}
	require.NoError(t, br.Forward(context.Background(), "orders.created", msg))

	require.Len(t, pub.published, 1)
	sent := pub.published[0]
	assert.Equal(t, message.Payload(`{"ok":true}`), sent.Payload)
	assert.Equal(t, "json", sent.Metadata.Get("codec"))
	assert.Equal(t, "abc", sent.Metadata.Get("hdr-trace-id"))
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []*message.Message
}

func (p *recordingPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, messages...)
	return nil
}
func (p *recordingPublisher) Close() error { return nil }

type closedSubscriber struct{}

func (closedSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}
func (closedSubscriber) Close() error { return nil }
