// Package export writes finished replicates to disk as CSV, JSON and
// compressed step logs.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/talgya/forage-sim/internal/engine"
)

// RunDirLayout names run directories by start time.
const RunDirLayout = "%Y%m%d-%H%M%S"

// RunDir creates and returns a fresh directory under base named after t.
func RunDir(base string, t time.Time) (string, error) {
	dir := filepath.Join(base, strftime.Format(RunDirLayout, t))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}
	return dir, nil
}

// WriteCSV writes one replicate's trackers as three CSV files in dir:
// per-step fleet catch, per-step unit state, and per-agent totals.
func WriteCSV(dir string, res *engine.Result) error {
	prefix := fmt.Sprintf("r%d_", res.Replicate)

	catch := [][]string{{"time", "catch"}}
	for _, t := range res.Steps {
		catch = append(catch, []string{string(t), ftoa(res.Fleet.Catch[t])})
	}
	if err := writeCSVFile(filepath.Join(dir, prefix+"fleet_catch.csv"), catch); err != nil {
		return err
	}

	units := [][]string{{"time", "unit", "stock", "visits", "realized", "hypothetical"}}
	for _, t := range res.Steps {
		for _, u := range res.Env.UnitIDs() {
			rec := res.Env.Corrections[t][u]
			units = append(units, []string{
				string(t),
				string(u),
				ftoa(res.Env.Stock[t][u]),
				strconv.Itoa(res.Env.Visits[t][u]),
				ftoa(rec.Realized),
				ftoa(rec.Hypothetical),
			})
		}
	}
	if err := writeCSVFile(filepath.Join(dir, prefix+"unit_steps.csv"), units); err != nil {
		return err
	}

	agents := [][]string{{"agent", "subfleet", "group", "catchability", "total_catch", "visits", "memory_fill"}}
	for _, a := range res.Fleet.Agents {
		visits := 0
		for _, n := range a.UnitVisits {
			visits += n
		}
		agents = append(agents, []string{
			string(a.ID),
			a.Subfleet,
			a.Group,
			ftoa(a.Catchability),
			ftoa(a.TotalCatch),
			strconv.Itoa(visits),
			ftoa(a.Memory.Fill()),
		})
	}
	return writeCSVFile(filepath.Join(dir, prefix+"agent_totals.csv"), agents)
}

func writeCSVFile(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// WriteJSON writes v as indented JSON.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
