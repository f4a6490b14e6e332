package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/projector-align/internal/logging"
	"github.com/danielpatrickdp/projector-align/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to aligner.db")
	deviceKey := flag.String("device", "", "device key (the projector's full name)")
	last := flag.Int("last", 20, "show N most recent versions")
	version := flag.String("version", "", "show single version detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" || (*deviceKey == "" && *version == "") {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/aligner.db --device 'Projector [TAG]' [--last N] [--json]")
		fmt.Fprintln(os.Stderr, "       inspect --db path/to/aligner.db --version id [--json]")
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if *version != "" {
		err = runDetailMode(ctx, store, *version, *jsonOut)
	} else {
		err = runListMode(ctx, store, *deviceKey, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	VersionID string  `json:"version_id"`
	Phase     string  `json:"phase"`
	Step      int     `json:"step"`
	Fitness   float64 `json:"fitness"`
	Decision  string  `json:"decision"`
	Reason    string  `json:"reason,omitempty"`
	Current   string  `json:"current"`
	CreatedAt string  `json:"created_at"`
}

func runListMode(ctx context.Context, store *state.Store, deviceKey string, last int, jsonOut bool) error {
	versions, err := store.ListVersionsWithProvenance(ctx, deviceKey, last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}

	// Store returns newest first; print chronologically.
	rows := make([]listRow, len(versions))
	for i, vp := range versions {
		r := listRow{
			VersionID: vp.VersionID,
			Decision:  vp.Decision,
			Reason:    vp.Reason,
			CreatedAt: vp.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if st, err := state.Decode(vp.Blob); err == nil {
			r.Phase = string(st.Phase)
			r.Step = st.Step
			r.Fitness = st.CurrentFitness
			r.Current = st.Current.String()
		}
		rows[len(versions)-1-i] = r
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-10s  %-13s  %6s  %7s  %-10s  %-32s  %s\n",
		"Version", "Phase", "Step", "Fitness", "Decision", "Current", "Time")
	fmt.Printf("%-10s+-%-13s+-%6s+-%7s+-%-10s+-%-32s+-%s\n",
		"----------", "-------------", "------", "-------", "----------",
		"--------------------------------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-10s  %-13s  %6d  %7.4f  %-10s  %-32s  %s\n",
			shortID(r.VersionID), r.Phase, r.Step, r.Fitness, r.Decision, r.Current, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	VersionID string              `json:"version_id"`
	ParentID  string              `json:"parent_id"`
	DeviceKey string              `json:"device_key"`
	CreatedAt string              `json:"created_at"`
	Decision  string              `json:"decision"`
	Reason    string              `json:"reason"`
	State     state.SearchState   `json:"state"`
	Tick      *logging.TickRecord `json:"tick,omitempty"`
}

func runDetailMode(ctx context.Context, store *state.Store, versionID string, jsonOut bool) error {
	vp, err := store.GetVersionWithProvenance(ctx, versionID)
	if err != nil {
		return err
	}
	st, err := state.Decode(vp.Blob)
	if err != nil {
		return fmt.Errorf("decode version %s: %w", versionID, err)
	}
	out := detailOutput{
		VersionID: vp.VersionID,
		ParentID:  vp.ParentID,
		DeviceKey: vp.DeviceKey,
		CreatedAt: vp.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Decision:  vp.Decision,
		Reason:    vp.Reason,
		State:     st,
		Tick:      parseTickRecord(vp.ReadingJSON),
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Version:   %s\n", out.VersionID)
	fmt.Printf("Parent:    %s\n", out.ParentID)
	fmt.Printf("Device:    %s\n", out.DeviceKey)
	fmt.Printf("Created:   %s\n", out.CreatedAt)
	fmt.Printf("Decision:  %s\n", out.Decision)
	fmt.Printf("Reason:    %s\n", out.Reason)
	fmt.Printf("Strategy:  %s\n", st.Strategy)
	fmt.Printf("Phase:     %s\n", st.Phase)
	fmt.Printf("Step:      %d\n", st.Step)
	fmt.Printf("Current:   %s (fitness %.4f)\n", st.Current, st.CurrentFitness)
	fmt.Printf("Previous:  %s (fitness %.4f)\n", st.Previous, st.PreviousFitness)
	fmt.Printf("Rotation:  code %d, index %d\n", st.RotationCode, st.RotationIndex)
	fmt.Printf("Cursor:    %d of %d candidates\n", st.Cursor, len(st.Candidates))
	if st.HasBox {
		fmt.Printf("Box:       %s .. %s\n", st.Box.Min, st.Box.Max)
	}

	if t := out.Tick; t != nil {
		fmt.Printf("\nTick Record:\n")
		fmt.Printf("  Counters:  total %d, remaining %d, buildable %d\n", t.Total, t.Remaining, t.Buildable)
		fmt.Printf("  Fitness:   %.4f (previous %.4f)\n", t.Fitness, t.PreviousFitness)
		fmt.Printf("  Seed:      %d\n", t.Seed)
		fmt.Printf("  Outcome:   %s\n", t.Outcome)
		if t.Applied != "" {
			fmt.Printf("  Applied:   %s\n", t.Applied)
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

func parseTickRecord(readingJSON string) *logging.TickRecord {
	if readingJSON == "" {
		return nil
	}
	var tr logging.TickRecord
	if err := json.Unmarshal([]byte(readingJSON), &tr); err == nil && tr.Device != "" {
		return &tr
	}
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
