package bus

import "time"

// DeliveryOptions configures a single send/publish/request emission. The
// zero value is valid: no extra headers, no codec override, the bus's
// default send timeout, and delivery not restricted to local consumers.
type DeliveryOptions struct {
	// Headers is merged into the outgoing Message's headers.
	Headers Headers

	// CodecName, if set, overrides codec resolution by body type.
	CodecName string

	// SendTimeout bounds how long request() waits for a reply. Zero means
	// "use the bus's configured default" (30s).
	SendTimeout time.Duration

	// LocalOnly forces delivery to stay in this process even when a
	// bridge is registered for the address.
	LocalOnly bool
}

func (o *DeliveryOptions) headers() Headers {
	if o == nil {
		return nil
	}
	return o.Headers
}

func (o *DeliveryOptions) codecName() string {
	if o == nil {
		return ""
	}
	return o.CodecName
}

func (o *DeliveryOptions) localOnly() bool {
	if o == nil {
		return false
	}
	return o.LocalOnly
}

func (o *DeliveryOptions) sendTimeout(fallback time.Duration) time.Duration {
	if o == nil || o.SendTimeout <= 0 {
		return fallback
	}
	return o.SendTimeout
}
