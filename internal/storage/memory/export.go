// internal/storage/memory/export.go
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/OCAP2/evacsim/internal/storage/memory/export/v1"
	"github.com/klauspost/compress/gzip"
)

// exportJSON writes the run data to a (gzipped) JSON file
func (b *Backend) exportJSON() error {
	if b.run == nil {
		return errors.New("no run started")
	}
	export := b.buildExport()

	// Build filename
	mode := strings.ReplaceAll(b.run.PanicMode, " ", "_")
	timestamp := b.run.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("evacsim_%s_%s.json.gz", mode, timestamp)
	} else {
		filename = fmt.Sprintf("evacsim_%s_%s.json", mode, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := b.writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() v1.Export {
	return v1.Build(&v1.RunData{
		Run:        *b.run,
		Report:     b.report,
		Episodes:   b.episodes,
		Outcomes:   b.outcomes,
		Population: b.population,
	})
}

func (b *Backend) writeJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}
