// Package bridge is an optional extension point that forwards messages
// published on a bridged local address to an external broker topic of the
// same name and relays inbound broker messages back into local dispatch.
// The core internal/bus engine never imports this package; bridge only
// depends on the bus's public surface, so a Bus with nothing attached
// never leaves the process.
package bridge

import (
	"context"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/relaybus/eventbus/internal/bus"
	"github.com/relaybus/eventbus/internal/bus/ids"
)

const headerValueSeparator = "\x1f"

// Bridge forwards bus messages to and from one external broker.
type Bridge interface {
	// Forward publishes msg to the broker topic named address.
	Forward(ctx context.Context, address string, msg *bus.Message) error
	// Listen subscribes to the broker topic named address and relays every
	// message it receives into localBus until ctx is cancelled or Close is
	// called.
	Listen(ctx context.Context, address string, localBus *bus.Bus) error
	// Capabilities reports what the underlying broker supports.
	Capabilities() Capabilities
	// Close releases the underlying publisher and subscriber.
	Close() error
}

// Driver holds the Watermill publisher/subscriber pair a broker-specific
// sub-package builds, plus that broker's capability set.
type Driver struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Caps       Capabilities
}

// New wraps a Driver as a Bridge.
func New(driver Driver, logger watermill.LoggerAdapter) Bridge {
	return &watermillBridge{driver: driver, logger: logger}
}

type watermillBridge struct {
	driver Driver
	logger watermill.LoggerAdapter

	mu     sync.Mutex
	closed bool
}

func (b *watermillBridge) Capabilities() Capabilities { return b.driver.Caps }

// Forward serializes msg's already-encoded body and headers into a
// Watermill message and publishes it under address, so a peer bridge on
// the other side can decode it with RelayInbound without knowing which
// codec produced it ahead of time.
func (b *watermillBridge) Forward(ctx context.Context, address string, msg *bus.Message) error {
	wm := message.NewMessage(ids.CreateULID(), msg.Body)
	wm.Metadata.Set("codec", msg.CodecName)
	for key, values := range msg.Headers {
		wm.Metadata.Set("hdr-"+key, strings.Join(values, headerValueSeparator))
	}
	wm.SetContext(ctx)
	return b.driver.Publisher.Publish(address, wm)
}

func (b *watermillBridge) Listen(ctx context.Context, address string, localBus *bus.Bus) error {
	messages, err := b.driver.Subscriber.Subscribe(ctx, address)
	if err != nil {
		return err
	}
	go b.relay(address, messages, localBus)
	return nil
}

func (b *watermillBridge) relay(address string, messages <-chan *message.Message, localBus *bus.Bus) {
	for wm := range messages {
		headers := bus.Headers{}
		for key, value := range wm.Metadata {
			if trimmed, ok := strings.CutPrefix(key, "hdr-"); ok {
				headers[trimmed] = strings.Split(value, headerValueSeparator)
			}
		}
		codecName := wm.Metadata.Get("codec")

		if err := localBus.RelayInbound(address, wm.Payload, codecName, headers); err != nil {
			b.logger.Error("bridge relay failed", err, watermill.LogFields{"address": address})
		}
		wm.Ack()
	}
}

func (b *watermillBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.driver.Publisher.Close(); err != nil {
		return err
	}
	return b.driver.Subscriber.Close()
}

// Attach wires br into localBus for address: every send/publish on address
// is forwarded to the broker (unless the emission is marked LocalOnly),
// and every message the broker delivers on address is relayed back into
// localBus via RelayInbound, which forces LocalOnly so it is not forwarded
// straight back out. The returned function detaches the interceptor and
// closes br.
func Attach(ctx context.Context, localBus *bus.Bus, address string, br Bridge) (func(), error) {
	interceptor := func(msg *bus.Message) (*bus.Message, error) {
		if msg.Address != address || msg.LocalOnly {
			return msg, nil
		}
		go func(forwarded *bus.Message) {
			// Best-effort and asynchronous: local dispatch does not wait
			// for the forward, so a broker-side failure here only affects
			// other processes' view, not this one's.
			_ = br.Forward(ctx, address, forwarded)
		}(msg)
		return msg, nil
	}

	localBus.AddOutboundInterceptor(interceptor)

	if err := br.Listen(ctx, address, localBus); err != nil {
		localBus.RemoveOutboundInterceptor(interceptor)
		return nil, err
	}

	return func() {
		localBus.RemoveOutboundInterceptor(interceptor)
		br.Close()
	}, nil
}
