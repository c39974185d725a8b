package parser

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/OCAP2/evacsim/internal/hazard"
	"github.com/OCAP2/evacsim/pkg/core"
	"github.com/klauspost/compress/zstd"
)

// RecordSize is the byte size of one binary record: seven little endian float32 values in the
// order time, x, y, z, density, thermal, visibility. The file's y is the floor axis and z is the
// height, so they swap when mapped onto world coordinates.
const RecordSize = 7 * 4

// ParseBinary reads fixed width records until EOF. A trailing partial record is a format error.
func (p *Parser) ParseBinary(r io.Reader) ([]core.HazardSample, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var (
		samples []core.HazardSample
		buf     [RecordSize]byte
	)
	for i := 0; ; i++ {
		n, err := io.ReadFull(br, buf[:])
		if errors.Is(err, io.EOF) {
			return samples, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &hazard.DataFormatError{
				Index:  i,
				Reason: fmt.Sprintf("incomplete record: %d of %d bytes", n, RecordSize),
			}
		}
		if err != nil {
			return nil, fmt.Errorf("error reading record %d: %w", i, err)
		}
		samples = append(samples, decodeRecord(buf[:]))
	}
}

// ParseBinaryZstd reads a zstd compressed binary dataset.
func (p *Parser) ParseBinaryZstd(r io.Reader) ([]core.HazardSample, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("error opening zstd stream: %w", err)
	}
	defer dec.Close()
	return p.ParseBinary(dec)
}

func decodeRecord(b []byte) core.HazardSample {
	f := func(i int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return core.HazardSample{
		Time:       f(0),
		X:          f(1),
		Z:          f(2),
		Y:          f(3),
		Density:    f(4),
		Thermal:    f(5),
		Visibility: f(6),
	}
}

func encodeRecord(b []byte, s core.HazardSample) {
	for i, v := range [...]float32{s.Time, s.X, s.Z, s.Y, s.Density, s.Thermal, s.Visibility} {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
}

// WriteBinary encodes samples in the binary record layout.
func WriteBinary(w io.Writer, samples []core.HazardSample) error {
	bw := bufio.NewWriterSize(w, 64*1024)
	var buf [RecordSize]byte
	for _, s := range samples {
		encodeRecord(buf[:], s)
		if _, err := bw.Write(buf[:]); err != nil {
			return fmt.Errorf("error writing record: %w", err)
		}
	}
	return bw.Flush()
}

// WriteBinaryZstd encodes samples as a zstd compressed binary dataset.
func WriteBinaryZstd(w io.Writer, samples []core.HazardSample) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("error opening zstd writer: %w", err)
	}
	if err := WriteBinary(enc, samples); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
