package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns structured values into stored bytes.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSON stores values as JSON, the format the storefront has always used
// for its local entries.
type JSON struct{}

func (JSON) Name() string                       { return "json" }
func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Msgpack stores values as MessagePack. Field names follow json tags so both
// codecs agree on the shape.
type Msgpack struct{}

func (Msgpack) Name() string { return "msgpack" }

func (Msgpack) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Msgpack) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// CodecByName resolves "json" (or empty) and "msgpack".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "msgpack":
		return Msgpack{}, nil
	default:
		return nil, fmt.Errorf("storage: unknown codec %q", name)
	}
}
