// Package model reads and writes the trained classifier artifact: a
// length-penalty threshold, per-window-width entropy distributions, and
// the HMM, bundled into one binary file per spec.md §6.
package model

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/ArturB/dns-gini-classifier/pkg/hmm"
)

// Artifact is the binary-serializable bundle produced by the trainer and
// consumed by the evaluator / packet-path classifier.
type Artifact struct {
	QueryMaxLength   uint32
	MaxLengthPenalty float64
	Bins             uint32

	// EntropyDistribution maps each configured window width to its
	// trained distribution (in log10 scale, per spec.md §6).
	EntropyDistribution map[uint32][]float64

	HMM *hmm.HMM
}

// New returns an empty artifact ready to be populated by a trainer.
func New(bins uint32) *Artifact {
	return &Artifact{
		Bins:                bins,
		EntropyDistribution: make(map[uint32][]float64),
		HMM:                 hmm.NewEmpty(),
	}
}

// Save writes the artifact to path in the field-ordered binary format of
// spec.md §6: query_max_length, max_length_penalty, bins,
// entropy_distribution, hmm.
func (a *Artifact) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("model: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, a.QueryMaxLength); err != nil {
		return fmt.Errorf("model: write query_max_length: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, a.MaxLengthPenalty); err != nil {
		return fmt.Errorf("model: write max_length_penalty: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, a.Bins); err != nil {
		return fmt.Errorf("model: write bins: %w", err)
	}

	// Entries are written in sorted window-width order so Save is
	// deterministic across runs with the same distribution map.
	widths := make([]uint32, 0, len(a.EntropyDistribution))
	for width := range a.EntropyDistribution {
		widths = append(widths, width)
	}
	sort.Slice(widths, func(i, j int) bool { return widths[i] < widths[j] })

	if err := binary.Write(w, binary.LittleEndian, uint32(len(widths))); err != nil {
		return fmt.Errorf("model: write entropy_distribution count: %w", err)
	}
	for _, width := range widths {
		values := a.EntropyDistribution[width]
		if err := binary.Write(w, binary.LittleEndian, width); err != nil {
			return fmt.Errorf("model: write window_width: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(values))); err != nil {
			return fmt.Errorf("model: write distribution length: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, values); err != nil {
			return fmt.Errorf("model: write distribution values: %w", err)
		}
	}

	if err := a.HMM.Save(w); err != nil {
		return fmt.Errorf("model: write hmm: %w", err)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("model: flush %s: %w", path, err)
	}
	return nil
}

// Load reads an artifact previously written by Save.
func Load(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("model: open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	a := &Artifact{EntropyDistribution: make(map[uint32][]float64)}

	if err := binary.Read(r, binary.LittleEndian, &a.QueryMaxLength); err != nil {
		return nil, fmt.Errorf("model: read query_max_length: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &a.MaxLengthPenalty); err != nil {
		return nil, fmt.Errorf("model: read max_length_penalty: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &a.Bins); err != nil {
		return nil, fmt.Errorf("model: read bins: %w", err)
	}

	var nEntries uint32
	if err := binary.Read(r, binary.LittleEndian, &nEntries); err != nil {
		return nil, fmt.Errorf("model: read entropy_distribution count: %w", err)
	}
	for i := uint32(0); i < nEntries; i++ {
		var width, length uint32
		if err := binary.Read(r, binary.LittleEndian, &width); err != nil {
			return nil, fmt.Errorf("model: read window_width: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, fmt.Errorf("model: read distribution length: %w", err)
		}
		values := make([]float64, length)
		if err := binary.Read(r, binary.LittleEndian, values); err != nil {
			return nil, fmt.Errorf("model: read distribution values: %w", err)
		}
		a.EntropyDistribution[width] = values
	}

	a.HMM = hmm.NewEmpty()
	if err := a.HMM.Load(r); err != nil {
		return nil, fmt.Errorf("model: read hmm: %w", err)
	}

	return a, nil
}

// SaveGraphs writes one CSV file per window width, named
// "<prefix><width><suffix>", with lines "i/bins;value".
func (a *Artifact) SaveGraphs(prefix, suffix string) error {
	if suffix == "" {
		suffix = ".csv"
	}
	for width, values := range a.EntropyDistribution {
		name := fmt.Sprintf("%s%d%s", prefix, width, suffix)
		if err := writeGraphCSV(name, values); err != nil {
			return fmt.Errorf("model: save_graphs %s: %w", name, err)
		}
	}
	return nil
}

func writeGraphCSV(path string, values []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	bins := len(values)
	for i, v := range values {
		if _, err := fmt.Fprintf(w, "%d/%d;%v\n", i, bins, v); err != nil {
			return err
		}
	}
	return w.Flush()
}
