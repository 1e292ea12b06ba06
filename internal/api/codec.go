// Package api exposes a hub over gRPC on a Unix socket. Messages are plain
// Go structs carried with a JSON codec, so the domain types travel as-is.
package api

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype the control service speaks.
const CodecName = "json"

// Codec marshals messages as JSON.
type Codec struct{}

var _ encoding.Codec = Codec{}

func (Codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (Codec) Name() string                       { return CodecName }
