package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/theredcat/heimdall/internal/domain"
)

// JSONCodec exports the topology as indented JSON
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// ContentType is the media type of the output
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// Export exports the topology to JSON
func (c *JSONCodec) Export(t *domain.Topology, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(t); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
