package bridge

// Capabilities describes the features supported by a bridged broker.
type Capabilities struct {
	SupportsOrdering  bool
	SupportsTracing   bool
	SupportsBatching  bool
	SupportsAck       bool
	SupportsNack      bool
	MaxMessageSize    int64
	Name              string
}

// SupportsReliableDelivery reports whether the broker supports
// at-least-once delivery semantics (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

var (
	// KafkaCapabilities for Apache Kafka.
	KafkaCapabilities = Capabilities{
		Name:             "kafka",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsBatching: true,
		SupportsAck:      true,
		SupportsNack:     false,
		MaxMessageSize:   1048576,
	}

	// AMQPCapabilities for RabbitMQ/AMQP.
	AMQPCapabilities = Capabilities{
		Name:             "amqp",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsBatching: false,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// NATSCapabilities for NATS Core.
	NATSCapabilities = Capabilities{
		Name:             "nats",
		SupportsOrdering: false,
		SupportsTracing:  true,
		SupportsBatching: false,
		SupportsAck:      false,
		SupportsNack:     false,
		MaxMessageSize:   1048576,
	}

	// AWSCapabilities for AWS SNS/SQS.
	AWSCapabilities = Capabilities{
		Name:             "aws",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsBatching: true,
		SupportsAck:      true,
		SupportsNack:     true,
		MaxMessageSize:   262144,
	}
)
