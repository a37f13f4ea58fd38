// Command eventbusdemo brings up a Bus, registers a request/reply handler
// and a fan-out publisher, and optionally attaches a bridge to an
// external broker if EVENTBUS_BRIDGE_BROKER is set.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	eventbus "github.com/relaybus/eventbus"
	"github.com/relaybus/eventbus/bridge"

	_ "github.com/relaybus/eventbus/bridge/amqp"
	_ "github.com/relaybus/eventbus/bridge/aws"
	_ "github.com/relaybus/eventbus/bridge/kafka"
	_ "github.com/relaybus/eventbus/bridge/nats"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := eventbus.NewSlogLogger(baseLogger)

	bus := eventbus.NewBus(eventbus.Config{
		MetricsEnabled: true,
		MetricsPort:    9091,
		TracingEnabled: false,
	}, logger)

	if err := bus.Start(ctx); err != nil {
		baseLogger.Error("failed to start bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close(context.Background())

	unregisterEcho, err := bus.Consumer("demo.echo", nil, func(msg *eventbus.Message) {
		_ = bus.Send(msg.ReplyAddress, string(msg.Body), nil)
	})
	if err != nil {
		baseLogger.Error("failed to register echo consumer", "error", err)
		os.Exit(1)
	}
	defer unregisterEcho()

	unregisterNotify, err := bus.Consumer("demo.notifications", nil, func(msg *eventbus.Message) {
		baseLogger.Info("notification received", "body", string(msg.Body))
	})
	if err != nil {
		baseLogger.Error("failed to register notification consumer", "error", err)
		os.Exit(1)
	}
	defer unregisterNotify()

	if broker := os.Getenv("EVENTBUS_BRIDGE_BROKER"); broker != "" {
		attachBridge(ctx, bus, broker, baseLogger)
	}

	future, err := bus.Request("demo.echo", "hello from eventbusdemo", nil, nil)
	if err != nil {
		baseLogger.Error("request failed", "error", err)
	} else {
		reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		reply, err := future.Wait(reqCtx)
		cancel()
		if err != nil {
			baseLogger.Error("reply failed", "error", err)
		} else {
			baseLogger.Info("reply received", "body", string(reply.Body))
		}
	}

	if err := bus.Publish("demo.notifications", "service started", nil); err != nil {
		baseLogger.Error("publish failed", "error", err)
	}

	<-ctx.Done()
}

// demoBridgeConfig adapts environment variables into bridge.Config for the
// demo; a real deployment would source this from its own configuration
// layer.
type demoBridgeConfig struct{}

func (demoBridgeConfig) GetKafkaBrokers() []string     { return []string{os.Getenv("EVENTBUS_KAFKA_BROKERS")} }
func (demoBridgeConfig) GetKafkaConsumerGroup() string { return "eventbusdemo" }
func (demoBridgeConfig) GetAMQPURL() string            { return os.Getenv("EVENTBUS_AMQP_URL") }
func (demoBridgeConfig) GetNATSURL() string            { return os.Getenv("EVENTBUS_NATS_URL") }
func (demoBridgeConfig) GetAWSRegion() string          { return os.Getenv("EVENTBUS_AWS_REGION") }
func (demoBridgeConfig) GetAWSAccountID() string       { return os.Getenv("EVENTBUS_AWS_ACCOUNT_ID") }
func (demoBridgeConfig) GetAWSAccessKeyID() string     { return os.Getenv("EVENTBUS_AWS_ACCESS_KEY_ID") }
func (demoBridgeConfig) GetAWSSecretAccessKey() string {
	return os.Getenv("EVENTBUS_AWS_SECRET_ACCESS_KEY")
}
func (demoBridgeConfig) GetAWSEndpoint() string { return os.Getenv("EVENTBUS_AWS_ENDPOINT") }

func attachBridge(ctx context.Context, bus *eventbus.Bus, broker string, logger *slog.Logger) {
	br, err := bridge.Build(ctx, broker, demoBridgeConfig{}, eventbus.NewWatermillAdapter(eventbus.NewSlogLogger(logger)))
	if err != nil {
		logger.Error("failed to build bridge", "broker", broker, "error", err)
		return
	}
	if _, err := bridge.Attach(ctx, bus, "demo.notifications", br); err != nil {
		logger.Error("failed to attach bridge", "broker", broker, "error", err)
	}
}
