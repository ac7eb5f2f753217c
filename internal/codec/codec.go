// Package codec renders topology snapshots as JSON, YAML or an Ansible inventory.
package codec

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/theredcat/heimdall/internal/domain"
)

// ErrUnknownFormat is returned for an export format nobody registered
var ErrUnknownFormat = errors.New("unknown export format")

// Exporter interface for exporting a topology to various formats
type Exporter interface {
	Export(t *domain.Topology, w io.Writer) error
	Format() string
	ContentType() string
}

var exporters = map[string]func() Exporter{
	"json":              func() Exporter { return NewJSONCodec() },
	"yaml":              func() Exporter { return NewYAMLCodec() },
	"ansible-inventory": func() Exporter { return NewAnsibleCodec() },
}

// ForFormat returns the exporter registered for format
func ForFormat(format string) (Exporter, error) {
	newExporter, ok := exporters[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return newExporter(), nil
}

// Formats lists the known export formats, sorted
func Formats() []string {
	out := make([]string, 0, len(exporters))
	for name := range exporters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
