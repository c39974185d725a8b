package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/OCAP2/evacsim/pkg/core"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Format identifies a hazard dataset encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatBinary
	FormatBinaryZstd
	FormatCSV
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatBinaryZstd:
		return "binary+zstd"
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ErrUnknownFormat is returned when a file extension maps to no known encoding.
var ErrUnknownFormat = errors.New("unknown hazard dataset format")

// DetectFormat picks the encoding from a file name.
func DetectFormat(path string) Format {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".zst"):
		return FormatBinaryZstd
	case strings.HasSuffix(name, ".bin"), strings.HasSuffix(name, ".bytes"):
		return FormatBinary
	case strings.HasSuffix(name, ".csv"):
		return FormatCSV
	case strings.HasSuffix(name, ".json"):
		return FormatJSON
	}
	return FormatUnknown
}

// Parser decodes hazard datasets into samples. It does no unit conversion apart from the
// documented CSV density scale.
type Parser struct {
	logger *slog.Logger
	schema *jsonschema.Schema
	csv    CSVOptions
}

// NewParser creates a parser and compiles the JSON dataset schema.
func NewParser(logger *slog.Logger) (*Parser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := jsonschema.CompileString("hazard_dataset.json", datasetSchema)
	if err != nil {
		return nil, fmt.Errorf("error compiling dataset schema: %w", err)
	}
	return &Parser{logger: logger, schema: schema, csv: DefaultCSVOptions()}, nil
}

// SetCSVOptions replaces the options used for CSV input.
func (p *Parser) SetCSVOptions(opts CSVOptions) {
	p.csv = opts
}

// Load reads a dataset file, choosing the decoder from the extension.
func (p *Parser) Load(path string) ([]core.HazardSample, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening dataset: %w", err)
	}
	defer f.Close()

	var samples []core.HazardSample
	switch format {
	case FormatBinary:
		samples, err = p.ParseBinary(f)
	case FormatBinaryZstd:
		samples, err = p.ParseBinaryZstd(f)
	case FormatCSV:
		samples, err = p.ParseCSV(f)
	case FormatJSON:
		samples, err = p.ParseJSON(f)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing %s dataset %s: %w", format, path, err)
	}

	p.logger.Debug("parsed hazard dataset", "path", path, "format", format.String(), "samples", len(samples))
	return samples, nil
}

// parseFloat32 accepts plain and exponent notation and surrounding spaces.
func parseFloat32(s string) (float32, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}
