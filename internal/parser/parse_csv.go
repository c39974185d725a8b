package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/OCAP2/evacsim/internal/hazard"
	"github.com/OCAP2/evacsim/pkg/core"
)

// csvColumns is the header written by the smoke solver export.
var csvColumns = []string{"x", "y", "z", "mol/mol", "c", "m", "time"}

// CSVOptions control CSV decoding.
type CSVOptions struct {
	// DensityScale multiplies the mol/mol column. 1e6 yields ppm.
	DensityScale float32
}

// DefaultCSVOptions converts mol/mol to ppm.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{DensityScale: 1e6}
}

// ParseCSV reads `X,Y,Z,mol/mol,C,m,time` rows. CSV Y is the floor axis and Z is the height.
// A units row directly after the header is skipped.
func (p *Parser) ParseCSV(r io.Reader) ([]core.HazardSample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading csv header: %w", err)
	}
	if !isHeader(header) {
		return nil, &hazard.DataFormatError{Index: -1, Reason: fmt.Sprintf("unexpected csv header %v", header)}
	}

	scale := p.csv.DensityScale
	if scale == 0 {
		scale = 1
	}

	var samples []core.HazardSample
	for row, index := 0, 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return samples, nil
		}
		if err != nil {
			return nil, fmt.Errorf("error reading csv row %d: %w", row, err)
		}
		if len(rec) != len(csvColumns) {
			return nil, &hazard.DataFormatError{
				Index:  index,
				Reason: fmt.Sprintf("expected %d fields, got %d", len(csvColumns), len(rec)),
			}
		}

		var v [7]float32
		bad := -1
		var perr error
		for i := range rec {
			if v[i], perr = parseFloat32(rec[i]); perr != nil {
				bad = i
				break
			}
		}
		if bad >= 0 {
			if row == 0 {
				// units row
				continue
			}
			return nil, &hazard.DataFormatError{Index: index, Field: csvColumns[bad], Reason: "not a number", Err: perr}
		}

		samples = append(samples, core.HazardSample{
			X:          v[0],
			Z:          v[1],
			Y:          v[2],
			Density:    v[3] * scale,
			Thermal:    v[4],
			Visibility: v[5],
			Time:       v[6],
		})
		index++
	}
}

func isHeader(rec []string) bool {
	if len(rec) != len(csvColumns) {
		return false
	}
	for i, col := range rec {
		if strings.ToLower(strings.TrimSpace(col)) != csvColumns[i] {
			return false
		}
	}
	return true
}

// ConvertCSV rewrites a CSV export as a binary dataset and returns the record count.
func (p *Parser) ConvertCSV(in io.Reader, out io.Writer) (int, error) {
	samples, err := p.ParseCSV(in)
	if err != nil {
		return 0, err
	}
	if err := WriteBinary(out, samples); err != nil {
		return 0, err
	}
	return len(samples), nil
}
