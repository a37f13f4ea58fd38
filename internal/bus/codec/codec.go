// Package codec implements the body-codec registry a Bus consults to
// encode and decode message bodies. String, bytes, JSON (bytedance/sonic),
// and Protocol Buffers (google.golang.org/protobuf) codecs are registered
// by default.
package codec

import (
	"fmt"
	"reflect"
	"sync"

	"google.golang.org/protobuf/proto"

	"github.com/relaybus/eventbus/internal/bus/jsoncodec"
)

// Codec encodes and decodes message bodies for the wire. Name must be
// unique within a Registry.
type Codec interface {
	Name() string
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

// SystemCodecName is the fallback codec used when no override and no
// default-for-type match is found.
const SystemCodecName = "json"

// Registry resolves codecs by name or by the Go type of a body: an
// explicit name override wins, then a default registered for the body's
// concrete type, then the proto codec for a proto.Message body, then the
// fallback system codec.
type Registry struct {
	mu            sync.RWMutex
	byName        map[string]Codec
	defaultByType map[reflect.Type]Codec
}

// NewRegistry returns a Registry pre-populated with the string, bytes,
// JSON, and Protocol Buffers codecs.
func NewRegistry() *Registry {
	r := &Registry{
		byName:        make(map[string]Codec),
		defaultByType: make(map[reflect.Type]Codec),
	}

	r.Register(stringCodec{})
	r.Register(bytesCodec{})
	r.Register(jsonCodec{})
	r.Register(protoCodec{})

	r.RegisterDefaultCodec("", stringCodec{})
	r.RegisterDefaultCodec([]byte(nil), bytesCodec{})
	return r
}

// Register adds or replaces a codec under its own Name().
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[c.Name()] = c
}

// Unregister removes a codec by name. Idempotent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, name)
}

// RegisterDefaultCodec makes c the default codec for values sharing
// sample's Go type.
func (r *Registry) RegisterDefaultCodec(sample any, c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultByType[reflect.TypeOf(sample)] = c
}

// UnregisterDefaultCodec removes the default-for-type mapping for
// sample's Go type.
func (r *Registry) UnregisterDefaultCodec(sample any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.defaultByType, reflect.TypeOf(sample))
}

// ByName resolves a codec by exact name.
func (r *Registry) ByName(name string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// Resolve picks the codec for an emission: an explicit name override
// wins; otherwise the default codec registered for body's concrete type;
// otherwise the proto codec if body is a proto.Message; otherwise the
// fallback system (JSON) codec.
func (r *Registry) Resolve(codecName string, body any) (Codec, error) {
	if codecName != "" {
		if c, ok := r.ByName(codecName); ok {
			return c, nil
		}
		return nil, fmt.Errorf("codec: unknown codec %q", codecName)
	}

	r.mu.RLock()
	c, ok := r.defaultByType[reflect.TypeOf(body)]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	if body != nil {
		if _, ok := body.(proto.Message); ok {
			if c, ok := r.ByName("proto"); ok {
				return c, nil
			}
		}
	}

	if c, ok := r.ByName(SystemCodecName); ok {
		return c, nil
	}
	return nil, fmt.Errorf("codec: no codec resolved for type %T", body)
}

type stringCodec struct{}

func (stringCodec) Name() string { return "string" }

func (stringCodec) Encode(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("codec: string codec cannot encode %T", v)
	}
	return []byte(s), nil
}

func (stringCodec) Decode(data []byte, out any) error {
	ptr, ok := out.(*string)
	if !ok {
		return fmt.Errorf("codec: string codec cannot decode into %T", out)
	}
	*ptr = string(data)
	return nil
}

type bytesCodec struct{}

func (bytesCodec) Name() string { return "bytes" }

func (bytesCodec) Encode(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("codec: bytes codec cannot encode %T", v)
	}
	return b, nil
}

func (bytesCodec) Decode(data []byte, out any) error {
	ptr, ok := out.(*[]byte)
	if !ok {
		return fmt.Errorf("codec: bytes codec cannot decode into %T", out)
	}
	*ptr = data
	return nil
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(v any) ([]byte, error) {
	return jsoncodec.Marshal(v)
}

func (jsonCodec) Decode(data []byte, out any) error {
	return jsoncodec.Unmarshal(data, out)
}

type protoCodec struct{}

func (protoCodec) Name() string { return "proto" }

func (protoCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("codec: proto codec cannot encode %T", v)
	}
	return proto.Marshal(msg)
}

func (protoCodec) Decode(data []byte, out any) error {
	msg, ok := out.(proto.Message)
	if !ok {
		return fmt.Errorf("codec: proto codec cannot decode into %T", out)
	}
	return proto.Unmarshal(data, msg)
}
