package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/OCAP2/evacsim/pkg/core"
)

// datasetSchema describes the JSON dataset layout. Coordinates are already in world axes
// (y is the height) and density is in ppm.
const datasetSchema = `{
  "type": "object",
  "required": ["records"],
  "properties": {
    "name": {"type": "string"},
    "timeStep": {"type": "number", "exclusiveMinimum": 0},
    "records": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["time", "x", "y", "z", "density", "thermal", "visibility"],
        "properties": {
          "time": {"type": "number"},
          "x": {"type": "number"},
          "y": {"type": "number"},
          "z": {"type": "number"},
          "density": {"type": "number", "minimum": 0},
          "thermal": {"type": "number"},
          "visibility": {"type": "number", "minimum": 0}
        }
      }
    }
  }
}`

// JSONDataset is the document accepted by ParseJSON.
type JSONDataset struct {
	Name     string              `json:"name,omitempty"`
	TimeStep float64             `json:"timeStep,omitempty"`
	Records  []core.HazardSample `json:"records"`
}

// ParseJSON validates the document against the dataset schema before decoding it.
func (p *Parser) ParseJSON(r io.Reader) ([]core.HazardSample, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading json dataset: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("error decoding json dataset: %w", err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("json dataset failed validation: %w", err)
	}

	var ds JSONDataset
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("error decoding json dataset: %w", err)
	}
	return ds.Records, nil
}
