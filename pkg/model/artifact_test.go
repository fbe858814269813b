package model

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ArturB/dns-gini-classifier/pkg/hmm"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.bin")

	h, err := hmm.NewRandom(2, []byte("abc$"), hmm.NewSeededRand(11))
	if err != nil {
		t.Fatalf("NewRandom: %v", err)
	}

	a := New(4)
	a.QueryMaxLength = 63
	a.MaxLengthPenalty = 0.5
	a.EntropyDistribution[8] = []float64{-1.2, -0.9, -0.3, -2.1}
	a.EntropyDistribution[16] = []float64{-1.0, -1.0, -1.0, -1.0}
	a.HMM = h

	if err := a.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.QueryMaxLength != a.QueryMaxLength {
		t.Fatalf("QueryMaxLength mismatch: got %d want %d", loaded.QueryMaxLength, a.QueryMaxLength)
	}
	if math.Abs(loaded.MaxLengthPenalty-a.MaxLengthPenalty) > 1e-12 {
		t.Fatalf("MaxLengthPenalty mismatch: got %v want %v", loaded.MaxLengthPenalty, a.MaxLengthPenalty)
	}
	if loaded.Bins != a.Bins {
		t.Fatalf("Bins mismatch: got %d want %d", loaded.Bins, a.Bins)
	}
	for width, values := range a.EntropyDistribution {
		got, ok := loaded.EntropyDistribution[width]
		if !ok {
			t.Fatalf("missing width %d after round trip", width)
		}
		for i := range values {
			if math.Abs(got[i]-values[i]) > 1e-12 {
				t.Fatalf("distribution[%d][%d] mismatch: got %v want %v", width, i, got[i], values[i])
			}
		}
	}
	if !a.HMM.ApproxEqual(loaded.HMM, 1e-9) {
		t.Fatalf("hmm mismatch after round trip")
	}
}

func TestSaveGraphsWritesOneCSVPerWidth(t *testing.T) {
	dir := t.TempDir()
	a := New(3)
	a.EntropyDistribution[8] = []float64{0.1, 0.2, 0.7}
	a.HMM = hmm.NewEmpty()

	prefix := filepath.Join(dir, "graph_")
	if err := a.SaveGraphs(prefix, ".csv"); err != nil {
		t.Fatalf("SaveGraphs: %v", err)
	}

	data, err := os.ReadFile(prefix + "8.csv")
	if err != nil {
		t.Fatalf("expected graph file: %v", err)
	}
	want := "0/3;0.1\n1/3;0.2\n2/3;0.7\n"
	if string(data) != want {
		t.Fatalf("unexpected CSV contents:\n%s\nwant:\n%s", data, want)
	}
}
