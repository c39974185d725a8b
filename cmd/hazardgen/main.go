// Command hazardgen writes synthetic smoke datasets and converts CSV exports to the binary
// record layout.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/OCAP2/evacsim/internal/hazard"
	"github.com/OCAP2/evacsim/internal/parser"
	"github.com/OCAP2/evacsim/pkg/core"
)

func main() {
	var (
		out      = flag.String("out", "smoke.bin", "output dataset (.bin or .zst)")
		csvIn    = flag.String("csv", "", "convert this CSV export instead of generating a plume")
		duration = flag.Float64("duration", 120, "seconds of data to generate")
		step     = flag.Float64("step", hazard.DefaultTimeStep, "seconds between frames")
		spread   = flag.Float64("spread", 0.35, "smoke front speed in m/s")
		sourceX  = flag.Float64("x", 15, "fire source x")
		sourceZ  = flag.Float64("z", 15, "fire source z")
		stride   = flag.Int("stride", 2, "sample every n-th grid cell")
		seed     = flag.Int64("seed", 1, "noise seed")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var err error
	if *csvIn != "" {
		err = convert(logger, *csvIn, *out)
	} else {
		cfg := hazard.DefaultPlumeConfig()
		cfg.Duration = *duration
		cfg.TimeStep = *step
		cfg.Spread = *spread
		cfg.Source = core.Vec3{X: *sourceX, Z: *sourceZ}
		cfg.Stride = *stride
		cfg.Seed = *seed
		err = generate(logger, cfg, *out)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "hazardgen:", err)
		os.Exit(1)
	}
}

func generate(logger *slog.Logger, cfg hazard.PlumeConfig, out string) error {
	samples, err := hazard.GeneratePlume(cfg)
	if err != nil {
		return fmt.Errorf("generating plume: %w", err)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer f.Close()

	switch parser.DetectFormat(out) {
	case parser.FormatBinaryZstd:
		err = parser.WriteBinaryZstd(f, samples)
	case parser.FormatBinary:
		err = parser.WriteBinary(f, samples)
	default:
		return fmt.Errorf("%w: %s", parser.ErrUnknownFormat, out)
	}
	if err != nil {
		return err
	}
	logger.Info("plume written", "path", out, "samples", len(samples), "duration", cfg.Duration)
	return f.Close()
}

func convert(logger *slog.Logger, in, out string) error {
	p, err := parser.NewParser(logger)
	if err != nil {
		return err
	}
	src, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("opening %s: %w", in, err)
	}
	defer src.Close()

	dst, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer dst.Close()

	n, err := p.ConvertCSV(src, dst)
	if err != nil {
		return err
	}
	logger.Info("converted CSV", "in", in, "out", out, "records", n)
	return dst.Close()
}
