package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pnewstein/tf-permute/sim"
)

// Report is the JSON document printed at the end of a run.
type Report struct {
	Config                reportConfig  `json:"config"`
	Backend               string        `json:"backend"`
	Trials                int64         `json:"trials"`
	Chunks                int64         `json:"chunks,omitempty"`
	AverageZeroExpression *float64      `json:"average_zero_expression"` // null when the backend did not report it
	Histogram             sim.Histogram `json:"histogram"`
	Summary               sim.Summary   `json:"summary"`
	ElapsedSeconds        float64       `json:"elapsed_s"`
}

type reportConfig struct {
	NCells     int     `json:"n_cells"`
	NGenes     int     `json:"n_genes"`
	Prob       float64 `json:"prob"`
	Seed       int64   `json:"seed"`
	Resolution int     `json:"resolution"`
}

func newReport(cfg sim.SimConfig, backend sim.Backend, res *sim.Result, elapsed time.Duration) Report {
	r := Report{
		Config: reportConfig{
			NCells:     cfg.NCells,
			NGenes:     cfg.NGenes,
			Prob:       cfg.Prob,
			Seed:       cfg.Seed,
			Resolution: cfg.Resolution,
		},
		Backend:        backendName(backend),
		Trials:         res.Trials,
		Chunks:         res.Chunks,
		Histogram:      res.Histogram,
		Summary:        sim.Summarize(res.Histogram),
		ElapsedSeconds: elapsed.Seconds(),
	}
	if res.ZeroExpressionTrials > 0 {
		avg := res.AverageZeroExpression()
		r.AverageZeroExpression = &avg
	}
	return r
}

func writeReport(w io.Writer, r Report) error {
	if _, err := fmt.Fprintln(w, "=== Simulation Results ==="); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writePresets(w io.Writer, cfg PresetsConfig) error {
	for _, name := range presetNames(cfg) {
		p := cfg.Presets[name]
		if _, err := fmt.Fprintf(w, "%-16s n_cells=%d n_genes=%d prob=%v seed=%d resolution=%d  %s\n",
			name, p.NCells, p.NGenes, p.Prob, p.Seed, p.Resolution, p.Description); err != nil {
			return err
		}
	}
	return nil
}
