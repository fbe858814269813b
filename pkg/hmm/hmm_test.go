package hmm

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func alphabetABC() []byte { return []byte("abc$") }

func TestNewRandomShape(t *testing.T) {
	h, err := NewRandom(3, alphabetABC(), NewSeededRand(1))
	if err != nil {
		t.Fatalf("NewRandom: %v", err)
	}
	if h.NumStates() != 3 {
		t.Fatalf("expected 3 states, got %d", h.NumStates())
	}
	if len(h.Alphabet()) != 4 {
		t.Fatalf("expected alphabet of 4, got %d", len(h.Alphabet()))
	}
	rowSum := 0.0
	for _, p := range h.transitions[0] {
		rowSum += p
	}
	if math.Abs(rowSum-1) > 1e-9 {
		t.Fatalf("transition row not normalized: sum=%v", rowSum)
	}
}

func TestNewWithParamsShapeMismatch(t *testing.T) {
	_, err := NewWithParams(
		[][]float64{{0.5, 0.5}},
		[][]float64{{1, 0}, {0, 1}},
		[]float64{0.5, 0.5},
		[]byte("ab"),
	)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestViterbiLengthOne(t *testing.T) {
	h, err := NewWithParams(
		[][]float64{{0.9, 0.1}, {0.2, 0.8}},
		[][]float64{{0.7, 0.3}, {0.1, 0.9}},
		[]float64{0.6, 0.4},
		[]byte("ab"),
	)
	if err != nil {
		t.Fatalf("NewWithParams: %v", err)
	}
	path, err := h.Viterbi("a")
	if err != nil {
		t.Fatalf("Viterbi: %v", err)
	}
	if len(path.States) != 1 {
		t.Fatalf("expected 1-state path, got %d", len(path.States))
	}
	// state 0 emits 'a' with 0.7, initial 0.6 -> 0.42
	// state 1 emits 'a' with 0.1, initial 0.4 -> 0.04
	// best is state 0
	if path.States[0] != 0 {
		t.Fatalf("expected state 0, got %d", path.States[0])
	}
	want := math.Log10(0.6) + math.Log10(0.7)
	if math.Abs(path.Prob-want) > 1e-9 {
		t.Fatalf("expected prob %v, got %v", want, path.Prob)
	}
}

func TestViterbiUnknownCharacter(t *testing.T) {
	h, _ := NewWithParams(
		[][]float64{{1}},
		[][]float64{{1}},
		[]float64{1},
		[]byte("a"),
	)
	if _, err := h.Viterbi("z"); !errors.Is(err, ErrAlphabetMismatch) {
		t.Fatalf("expected ErrAlphabetMismatch, got %v", err)
	}
}

func TestLearnTriggersUpdateAtBatchSize(t *testing.T) {
	h, err := NewRandom(2, alphabetABC(), NewSeededRand(7))
	if err != nil {
		t.Fatalf("NewRandom: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := h.Learn("abc$", 0.1, 4); err != nil {
			t.Fatalf("Learn: %v", err)
		}
	}
	if h.Processed() != 4 {
		t.Fatalf("expected processed=4, got %d", h.Processed())
	}
	// accumulators reset after the batch-size-triggered update
	for _, row := range h.transitionsAcc {
		for _, v := range row {
			if v != 0 {
				t.Fatalf("expected accumulators reset after update, found %v", v)
			}
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	h, err := NewRandom(3, alphabetABC(), NewSeededRand(42))
	if err != nil {
		t.Fatalf("NewRandom: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := h.Learn("abc$", 0.05, 10); err != nil {
			t.Fatalf("Learn: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := h.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := NewEmpty()
	if err := loaded.Load(&buf); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !h.ApproxEqual(loaded, 1e-9) {
		t.Fatalf("round-tripped hmm does not match original within tolerance")
	}
}

func TestGenerateUntilTerminatesOnEndSymbol(t *testing.T) {
	// Single state, deterministic: always emits '$' and self-loops.
	h, err := NewWithParams(
		[][]float64{{1}},
		[][]float64{{1}},
		[]float64{1},
		[]byte("$"),
	)
	if err != nil {
		t.Fatalf("NewWithParams: %v", err)
	}
	h.rng = NewSeededRand(3)
	path, err := h.GenerateUntil('$', 100)
	if err != nil {
		t.Fatalf("GenerateUntil: %v", err)
	}
	if len(path.Sequence) != 1 || path.Sequence[0] != '$' {
		t.Fatalf("expected immediate termination on '$', got %q", path.Sequence)
	}
}

func TestGenerateProducesRequestedLength(t *testing.T) {
	h, err := NewRandom(2, alphabetABC(), NewSeededRand(5))
	if err != nil {
		t.Fatalf("NewRandom: %v", err)
	}
	path, err := h.Generate(10)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(path.Sequence) != 10 || len(path.States) != 10 {
		t.Fatalf("expected length 10, got seq=%d states=%d", len(path.Sequence), len(path.States))
	}
}

func TestLearnParallelFlushesAtBatchSize(t *testing.T) {
	h, err := NewRandom(2, alphabetABC(), NewSeededRand(9))
	if err != nil {
		t.Fatalf("NewRandom: %v", err)
	}
	const batch = 8
	for i := 0; i < batch-1; i++ {
		if err := h.LearnParallel("abc$", 0.1, batch); err != nil {
			t.Fatalf("LearnParallel: %v", err)
		}
	}
	if h.Processed() != 0 {
		t.Fatalf("expected no processing before batch fills, got %d", h.Processed())
	}
	if err := h.LearnParallel("abc$", 0.1, batch); err != nil {
		t.Fatalf("LearnParallel: %v", err)
	}
	if h.Processed() != batch {
		t.Fatalf("expected processed=%d after flush, got %d", batch, h.Processed())
	}
}
