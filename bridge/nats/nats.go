// Package nats provides a NATS Core bridge driver.
package nats

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/relaybus/eventbus/bridge"
)

// BrokerName is the name this driver registers under.
const BrokerName = "nats"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return nats.NewSubscriber(cfg, logger)
}

func init() {
	bridge.RegisterWithCapabilities(BrokerName, Build, bridge.NATSCapabilities)
}

// Build creates a new NATS bridge.
func Build(ctx context.Context, cfg bridge.Config, logger watermill.LoggerAdapter) (bridge.Bridge, error) {
	url := cfg.GetNATSURL()
	marshaler := &nats.NATSMarshaler{}

	publisher, err := PublisherFactory(
		nats.PublisherConfig{URL: url, Marshaler: marshaler},
		logger,
	)
	if err != nil {
		return nil, err
	}

	subscriber, err := SubscriberFactory(
		nats.SubscriberConfig{URL: url, Unmarshaler: marshaler},
		logger,
	)
	if err != nil {
		return nil, err
	}

	return bridge.New(bridge.Driver{
		Publisher:  publisher,
		Subscriber: subscriber,
		Caps:       bridge.NATSCapabilities,
	}, logger), nil
}
