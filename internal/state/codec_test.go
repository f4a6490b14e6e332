package state

import (
	"strings"
	"testing"

	"github.com/danielpatrickdp/projector-align/internal/candidates"
	"github.com/danielpatrickdp/projector-align/internal/transform"
	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecodePreservesState(t *testing.T) {
	in := SearchState{
		Strategy: "cell-scan",
		Phase:    PhaseSearching,
		Step:     17,
		Current: transform.Transform{
			Offset:   transform.Vec3{X: 1, Y: -2, Z: 3},
			Rotation: transform.Vec3{X: 0, Y: 1, Z: -1},
		},
		Previous:        transform.Transform{Offset: transform.Vec3{X: 1, Y: -2, Z: 2}},
		CurrentFitness:  0.25,
		PreviousFitness: 0.125,
		Seeded:          true,
		Stall:           4,
		BestInRotation:  0.5,
		RotationCode:    42,
		RotationIndex:   7,
		Cursor:          2,
		Candidates:      []transform.Vec3{{X: 0, Y: 0, Z: 0}, {X: -1, Y: 0, Z: 2}},
		Box:             candidates.Box{Min: transform.Vec3{X: -1}, Max: transform.Vec3{X: 3, Y: 2, Z: 1}},
		HasBox:          true,
		Seed:            99,
	}

	blob, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("state changed across encode/decode (-want +got):\n%s", diff)
	}
}

func TestEncodeIsFlat(t *testing.T) {
	blob, err := Encode(SearchState{Step: 3, Current: transform.Transform{Offset: transform.Vec3{X: 5}}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(blob), "\n") {
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "-") {
			t.Fatalf("blob is not flat: %q", line)
		}
	}
	if !strings.Contains(blob, "offsetX: 5") {
		t.Fatalf("expected offsetX key, got:\n%s", blob)
	}
}

func TestDecodeEmptyIsUninitialized(t *testing.T) {
	s, err := Decode("")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.Phase != PhaseUninitialized || s.Step != 0 {
		t.Fatalf("unexpected state %+v", s)
	}
}

func TestDecodeMissingKeysDefault(t *testing.T) {
	s, err := Decode("step: 5\nstrategy: annealed\n")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.Step != 5 || s.Strategy != "annealed" {
		t.Fatalf("unexpected state %+v", s)
	}
	if s.Phase != PhaseUninitialized || s.HasBox || s.Candidates != nil {
		t.Fatalf("missing keys did not default: %+v", s)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode("step: [1, 2"); err == nil {
		t.Fatal("expected error for malformed blob")
	}
	if _, err := Decode("candidates: 1,2\n"); err == nil {
		t.Fatal("expected error for malformed candidates")
	}
}

func TestNoMatchSurvivesEncoding(t *testing.T) {
	blob, err := Encode(SearchState{Current: transform.NoMatch})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !s.Current.IsNoMatch() {
		t.Fatalf("sentinel lost: %v", s.Current)
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := SearchState{Candidates: []transform.Vec3{{X: 1}}}
	b := a.Clone()
	b.Candidates[0].X = 9
	if a.Candidates[0].X != 1 {
		t.Fatal("Clone shares candidate storage")
	}
}

func TestPhaseTerminal(t *testing.T) {
	for _, p := range []Phase{PhaseConverged, PhaseExhausted, PhaseFailed} {
		if !p.Terminal() {
			t.Errorf("%s should be terminal", p)
		}
	}
	for _, p := range []Phase{PhaseUninitialized, PhaseActivating, PhaseSearching} {
		if p.Terminal() {
			t.Errorf("%s should not be terminal", p)
		}
	}
}
