package sim

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/OCAP2/evacsim/pkg/core"
)

// Stats accumulates finished episodes.
type Stats struct {
	Episodes  int
	Occupants int // spawned over all episodes
	Escaped   int
	TimeSum   float64
	HealthSum float64 // remaining health of escapees
}

func (st *Stats) Add(sum core.EpisodeSummary) {
	st.Episodes++
	st.Occupants += sum.Total
	st.Escaped += sum.Escaped
	st.TimeSum += sum.Duration
	st.HealthSum += sum.HealthSum
}

// Report averages the time per episode and the success rate and health per spawned occupant.
func (st Stats) Report(mode string) core.RunReport {
	r := core.RunReport{PanicMode: mode, TotalEpisodes: st.Episodes}
	if st.Episodes == 0 {
		return r
	}
	r.AvgTime = st.TimeSum / float64(st.Episodes)
	if st.Occupants > 0 {
		r.SuccessRate = float64(st.Escaped) / float64(st.Occupants) * 100
		r.AvgHealth = st.HealthSum / float64(st.Occupants)
	}
	return r
}

var finalResultHeader = []string{"PanicMode", "TotalEpisodes", "SuccessRate(%)", "AvgTime(s)", "AvgHealth"}

// WriteFinalResult writes the header and the report row.
func WriteFinalResult(w io.Writer, r core.RunReport) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		finalResultHeader,
		{
			r.PanicMode,
			strconv.Itoa(r.TotalEpisodes),
			strconv.FormatFloat(r.SuccessRate, 'f', 2, 64),
			strconv.FormatFloat(r.AvgTime, 'f', 2, 64),
			strconv.FormatFloat(r.AvgHealth, 'f', 2, 64),
		},
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing final result: %w", err)
	}
	return nil
}

// FinalResultPath names the report file after the panic mode and the local time.
func FinalResultPath(dir, mode string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("FinalResult_%s_%s.csv", mode, t.Format("0102_1504")))
}

// SaveFinalResult writes the report into dir and returns the file path.
func SaveFinalResult(dir string, r core.RunReport, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating results dir: %w", err)
	}
	path := FinalResultPath(dir, r.PanicMode, now)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating final result: %w", err)
	}
	if err := WriteFinalResult(f, r); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
