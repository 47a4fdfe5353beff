package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Encoding names a state payload encoding.
type Encoding string

const (
	// EncodingJSON sends bare JSON values ("true", "3", "21.5").
	EncodingJSON Encoding = "json"
	// EncodingCBOR sends the same values CBOR-encoded, for constrained links.
	EncodingCBOR Encoding = "cbor"
)

// Codec encodes state payloads.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// NewCodec returns the codec for enc.
func NewCodec(enc Encoding) (Codec, error) {
	switch enc {
	case EncodingJSON:
		return jsonCodec{}, nil
	case EncodingCBOR:
		return cborCodec{}, nil
	}
	return nil, fmt.Errorf("unknown payload encoding %q", enc)
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type cborCodec struct{}

func (cborCodec) Marshal(v any) ([]byte, error)      { return cbor.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }
