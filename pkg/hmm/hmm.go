// Package hmm implements a discrete hidden Markov model over DNS-name
// character sequences: Viterbi decoding, sequence generation, minibatch
// Viterbi-path training and binary serialization.
//
// The spec's generic HMM<E, S> is specialized to E=byte, S=string (DNS
// names are ASCII), per spec.md §9's "Implementers may choose a concrete
// specialization (char, bytes) when no other use is required" — the
// model artifact's wire format (spec.md §6) is itself defined in terms
// of byte alphabets, so a generic implementation would need to
// re-specialize at the serialization boundary anyway.
package hmm

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Errors returned by the HMM engine, per spec.md §4.3/§7.
var (
	ErrShapeMismatch    = errors.New("hmm: transition/emission/initial matrix shape mismatch")
	ErrAlphabetMismatch = errors.New("hmm: character not present in hmm alphabet")
	ErrEmptyAlphabet    = errors.New("hmm: generation requires a non-empty alphabet")
)

// parallelSlices is the compile-time fan-out for LearnParallel, matching
// the original's #pragma omp parallel for over 8 threads.
const parallelSlices = 8

// Path is the result of a Viterbi decode or a generated sequence: the
// state path, the emitted sequence, and its accumulated log10
// probability.
type Path struct {
	States   []int
	Sequence string
	Prob     float64
}

// HMM is a discrete hidden Markov model over a byte alphabet.
type HMM struct {
	mu sync.Mutex

	currentState int
	alphabet     []byte
	index        map[byte]int
	nStates      int

	initial     []float64
	transitions [][]float64
	emissions   [][]float64

	initialAcc     []float64
	transitionsAcc [][]float64
	emissionsAcc   [][]float64

	processed      uint64
	learningBuffer []string

	rng *rand.Rand
}

// NewSeededRand returns a process-independent RNG seeded deterministically,
// for reproducible tests (spec.md §5: "must be explicitly seedable").
func NewSeededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func defaultRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// NewEmpty returns a zero-value HMM intended to be populated by Load.
func NewEmpty() *HMM {
	return &HMM{index: map[byte]int{}, rng: defaultRand()}
}

func buildIndex(alphabet []byte) map[byte]int {
	idx := make(map[byte]int, len(alphabet))
	for i, e := range alphabet {
		idx[e] = i
	}
	return idx
}

func newMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

func randomMatrix(rng *rand.Rand, rows, cols int) [][]float64 {
	m := newMatrix(rows, cols)
	for i := range m {
		for j := range m[i] {
			m[i][j] = rng.Float64()
		}
	}
	return m
}

// NewRandom builds an HMM with the given state count and alphabet,
// uniform [0,1] draws row-normalized to be row-stochastic.
func NewRandom(numStates int, alphabet []byte, rng *rand.Rand) (*HMM, error) {
	if numStates <= 0 {
		return nil, fmt.Errorf("hmm: numStates must be positive")
	}
	if rng == nil {
		rng = defaultRand()
	}

	initRow := make([]float64, numStates)
	for i := range initRow {
		initRow[i] = rng.Float64()
	}

	h := &HMM{
		alphabet:       append([]byte(nil), alphabet...),
		index:          buildIndex(alphabet),
		nStates:        numStates,
		initial:        initRow,
		transitions:    randomMatrix(rng, numStates, numStates),
		emissions:      randomMatrix(rng, numStates, len(alphabet)),
		initialAcc:     make([]float64, numStates),
		transitionsAcc: newMatrix(numStates, numStates),
		emissionsAcc:   newMatrix(numStates, len(alphabet)),
		rng:            rng,
	}

	h.normalize()
	h.currentState = randomElement(h.initial, rng)
	return h, nil
}

// NewWithParams builds an HMM from explicit matrices, scaled to
// row-stochastic. Returns ErrShapeMismatch if the four dimensions are
// inconsistent.
func NewWithParams(transitions, emissions [][]float64, initial []float64, alphabet []byte) (*HMM, error) {
	n := len(initial)
	validShape := n == len(transitions) &&
		allRowsLen(transitions, n) &&
		len(emissions) == n &&
		allRowsLen(emissions, len(alphabet))
	if !validShape {
		return nil, fmt.Errorf("%w: initial=%d transitions=%dx?, emissions=%dx%d",
			ErrShapeMismatch, n, len(transitions), len(emissions), len(alphabet))
	}

	h := &HMM{
		alphabet:       append([]byte(nil), alphabet...),
		index:          buildIndex(alphabet),
		nStates:        n,
		initial:        append([]float64(nil), initial...),
		transitions:    copyMatrix(transitions),
		emissions:      copyMatrix(emissions),
		initialAcc:     make([]float64, n),
		transitionsAcc: newMatrix(n, n),
		emissionsAcc:   newMatrix(n, len(alphabet)),
		rng:            defaultRand(),
	}
	h.normalize()
	return h, nil
}

func allRowsLen(m [][]float64, n int) bool {
	for _, row := range m {
		if len(row) != n {
			return false
		}
	}
	return true
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Alphabet returns the HMM's output alphabet.
func (h *HMM) Alphabet() []byte { return append([]byte(nil), h.alphabet...) }

// NumStates returns the number of hidden states.
func (h *HMM) NumStates() int { return h.nStates }

// CurrentState returns the HMM's current state.
func (h *HMM) CurrentState() int { return h.currentState }

// SetCurrentState sets the HMM's current state.
func (h *HMM) SetCurrentState(state int) error {
	if state < 0 || state >= h.nStates {
		return fmt.Errorf("hmm: state %d out of range [0,%d)", state, h.nStates)
	}
	h.currentState = state
	return nil
}

// Emission returns the emission probability of e from state.
func (h *HMM) Emission(state int, e byte) (float64, error) {
	idx, err := h.outIndex(e)
	if err != nil {
		return 0, err
	}
	return h.emissions[state][idx], nil
}

// Transition returns the transition probability from stateFrom to stateTo.
func (h *HMM) Transition(stateFrom, stateTo int) float64 {
	return h.transitions[stateFrom][stateTo]
}

func (h *HMM) outIndex(e byte) (int, error) {
	idx, ok := h.index[e]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrAlphabetMismatch, e)
	}
	return idx, nil
}

// normalizeRows scales each row of mat to sum to 1.
func normalizeRows(mat [][]float64) {
	for _, row := range mat {
		var sum float64
		for _, v := range row {
			sum += v
		}
		if sum == 0 {
			continue
		}
		for j := range row {
			row[j] /= sum
		}
	}
}

func (h *HMM) normalize() {
	normalizeRows(h.transitions)
	normalizeRows(h.emissions)
	normalizeRows([][]float64{h.initial})
}

// randomElement samples an index in [0,len(probabilities)) according to
// the given discrete distribution, via cumulative thresholds.
func randomElement(probabilities []float64, rng *rand.Rand) int {
	r := rng.Float64()
	var cum float64
	for i, p := range probabilities {
		cum += p
		if r < cum {
			return i
		}
	}
	return len(probabilities) - 1
}

// NextStep advances the HMM one step: samples a next state from the
// current state's transition row, samples an output character from the
// current state's emission row, and returns the output character plus
// the log10 probability of that joint transition+emission.
func (h *HMM) NextStep() (byte, float64, error) {
	if len(h.alphabet) == 0 || h.nStates == 0 {
		return 0, 0, ErrEmptyAlphabet
	}

	transRow := h.transitions[h.currentState]
	emitRow := h.emissions[h.currentState]

	newState := randomElement(transRow, h.rng)
	newStateProb := h.transitions[h.currentState][newState]
	emitIdx := randomElement(emitRow, h.rng)
	newOutput := h.alphabet[emitIdx]
	newOutputProb := h.emissions[h.currentState][emitIdx]

	h.currentState = newState
	return newOutput, math.Log10(newStateProb) + math.Log10(newOutputProb), nil
}

// Generate reseeds the current state from the initial distribution and
// emits length characters.
func (h *HMM) Generate(length int) (Path, error) {
	if len(h.alphabet) == 0 || h.nStates == 0 {
		return Path{}, ErrEmptyAlphabet
	}
	h.normalize()
	h.currentState = randomElement(h.initial, h.rng)

	var result Path
	seq := make([]byte, 0, length)
	for i := 0; i < length; i++ {
		result.States = append(result.States, h.currentState)
		ch, p, err := h.NextStep()
		if err != nil {
			return Path{}, err
		}
		seq = append(seq, ch)
		result.Prob += p
	}
	result.Sequence = string(seq)
	return result, nil
}

// GenerateUntil behaves like Generate but terminates once the emitted
// character equals end, or maxLen characters have been produced
// (a defensive bound absent from the original, which has no equivalent
// safeguard against an alphabet/model that never emits end).
func (h *HMM) GenerateUntil(end byte, maxLen int) (Path, error) {
	if len(h.alphabet) == 0 || h.nStates == 0 {
		return Path{}, ErrEmptyAlphabet
	}
	h.normalize()
	h.currentState = randomElement(h.initial, h.rng)

	var result Path
	var seq []byte
	for {
		result.States = append(result.States, h.currentState)
		ch, p, err := h.NextStep()
		if err != nil {
			return Path{}, err
		}
		seq = append(seq, ch)
		result.Prob += p
		if ch == end || len(seq) >= maxLen {
			break
		}
	}
	result.Sequence = string(seq)
	return result, nil
}

// Viterbi finds the most likely state path for sequence and its
// accumulated log10 probability. The forward pass is computed in
// probability space (not log), matching the original algorithm.
func (h *HMM) Viterbi(sequence string) (Path, error) {
	L := len(sequence)
	if L == 0 {
		return Path{}, fmt.Errorf("hmm: viterbi requires a non-empty sequence")
	}
	N := h.nStates

	emitIdx := make([]int, L)
	for t := 0; t < L; t++ {
		idx, err := h.outIndex(sequence[t])
		if err != nil {
			return Path{}, err
		}
		emitIdx[t] = idx
	}

	t1 := newMatrix(N, L)
	t2 := make([][]int, N)
	for i := range t2 {
		t2[i] = make([]int, L)
	}

	for t := 0; t < L; t++ {
		for i := 0; i < N; i++ {
			if t == 0 {
				t1[i][0] = h.initial[i] * h.emissions[i][emitIdx[0]]
				t2[i][0] = 0
				continue
			}
			var valmax float64
			var argmax int
			for k := 0; k < N; k++ {
				val := t1[k][t-1] * h.emissions[i][emitIdx[t]] * h.transitions[k][i]
				if val > valmax {
					valmax = val
					argmax = k
				}
			}
			t1[i][t] = valmax
			t2[i][t] = argmax
		}
	}

	z := make([]int, L)
	var zmax float64
	var zargmax int
	for k := 0; k < N; k++ {
		if t1[k][L-1] > zmax {
			zmax = t1[k][L-1]
			zargmax = k
		}
	}
	z[L-1] = zargmax
	for t := L - 2; t >= 0; t-- {
		z[t] = t2[z[t+1]][t+1]
	}

	var prob float64
	for t := 0; t < L; t++ {
		if t == 0 {
			prob = math.Log10(h.initial[z[0]]) + math.Log10(h.emissions[z[0]][emitIdx[0]])
		} else {
			prob += math.Log10(h.emissions[z[t]][emitIdx[t]]) + math.Log10(h.transitions[z[t-1]][z[t]])
		}
	}

	return Path{States: z, Sequence: sequence, Prob: prob}, nil
}

// Learn computes the Viterbi path of sequence and accumulates its
// transitions/emissions/initial-state counts. Every batchSize processed
// sequences triggers an Update(rate).
func (h *HMM) Learn(sequence string, rate float64, batchSize int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	path, err := h.Viterbi(sequence)
	if err != nil {
		return err
	}

	for i := 0; i < len(path.States)-1; i++ {
		h.transitionsAcc[path.States[i]][path.States[i+1]]++
	}
	for i, ch := range []byte(sequence) {
		idx, err := h.outIndex(ch)
		if err != nil {
			return err
		}
		h.emissionsAcc[path.States[i]][idx]++
	}
	h.initialAcc[path.States[0]]++

	h.processed++
	if batchSize > 0 && h.processed%uint64(batchSize) == 0 {
		h.updateLocked(rate)
	}
	return nil
}

// LearnParallel buffers sequence; once batchSize sequences have
// accumulated, it fans them out across parallelSlices goroutines (each
// calling Learn under the shared lock), mirroring the original's OpenMP
// parallel-for over 8 threads.
func (h *HMM) LearnParallel(sequence string, rate float64, batchSize int) error {
	h.mu.Lock()
	h.learningBuffer = append(h.learningBuffer, sequence)
	var buf []string
	if len(h.learningBuffer) == batchSize {
		buf = h.learningBuffer
		h.learningBuffer = nil
	}
	h.mu.Unlock()

	if buf == nil {
		return nil
	}

	threadBatch := (batchSize + parallelSlices - 1) / parallelSlices
	if threadBatch == 0 {
		threadBatch = 1
	}

	var g errgroup.Group
	for i := 0; i < parallelSlices; i++ {
		i := i
		g.Go(func() error {
			for j := 0; j < threadBatch; j++ {
				idx := i*threadBatch + j
				if idx >= len(buf) {
					return nil
				}
				if err := h.Learn(buf[idx], rate, batchSize); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// Update applies accumulated minibatch counts to the live matrices,
// normalizes, and resets the accumulators.
func (h *HMM) Update(rate float64) {
	h.mu.Lock()
	h.updateLocked(rate)
	h.mu.Unlock()
}

// updateLocked assumes the caller holds h.mu.
func (h *HMM) updateLocked(rate float64) {
	for i := range h.transitions {
		for j := range h.transitions[i] {
			h.transitions[i][j] += rate * h.transitionsAcc[i][j]
		}
	}
	for i := range h.emissions {
		for j := range h.emissions[i] {
			h.emissions[i][j] += rate * h.emissionsAcc[i][j]
		}
	}
	for i := range h.initial {
		h.initial[i] += rate * h.initialAcc[i]
	}

	h.normalize()

	for i := range h.transitionsAcc {
		for j := range h.transitionsAcc[i] {
			h.transitionsAcc[i][j] = 0
		}
	}
	for i := range h.emissionsAcc {
		for j := range h.emissionsAcc[i] {
			h.emissionsAcc[i][j] = 0
		}
	}
	for i := range h.initialAcc {
		h.initialAcc[i] = 0
	}
}

// Processed returns the number of sequences contributed to the
// accumulators since the HMM was created; Update does not reset it, and
// Load restores the saved count.
func (h *HMM) Processed() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.processed
}

// ApproxEqual reports whether h and other share current state, state
// count, alphabet and processed count, and whether their initial,
// transition and emission matrices match within tol. The accumulator
// matrices are not compared.
func (h *HMM) ApproxEqual(other *HMM, tol float64) bool {
	if h.currentState != other.currentState || h.nStates != other.nStates {
		return false
	}
	if string(h.alphabet) != string(other.alphabet) {
		return false
	}
	if h.processed != other.processed {
		return false
	}
	return approxEqualVec(h.initial, other.initial, tol) &&
		approxEqualMat(h.transitions, other.transitions, tol) &&
		approxEqualMat(h.emissions, other.emissions, tol)
}

func approxEqualVec(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func approxEqualMat(a, b [][]float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !approxEqualVec(a[i], b[i], tol) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------
// Serialization: little-endian, field-ordered per spec.md §6:
// current_state, initial, initial_acc, transitions, transitions_acc,
// emissions, emissions_acc, alphabet, processed, learning_buffer.
// Matrices serialize as (n_rows, n_cols, row-major doubles); the two
// 1xN "vectors" (initial, initial_acc) serialize as 1-row matrices.
// ---------------------------------------------------------------------

func writeMatrix(w io.Writer, mat [][]float64) error {
	rows := uint32(len(mat))
	cols := uint32(0)
	if rows > 0 {
		cols = uint32(len(mat[0]))
	}
	if err := binary.Write(w, binary.LittleEndian, rows); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, cols); err != nil {
		return err
	}
	for _, row := range mat {
		if err := binary.Write(w, binary.LittleEndian, row); err != nil {
			return err
		}
	}
	return nil
}

func readMatrix(r io.Reader) ([][]float64, error) {
	var rows, cols uint32
	if err := binary.Read(r, binary.LittleEndian, &rows); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &cols); err != nil {
		return nil, err
	}
	mat := make([][]float64, rows)
	for i := range mat {
		row := make([]float64, cols)
		if err := binary.Read(r, binary.LittleEndian, row); err != nil {
			return nil, err
		}
		mat[i] = row
	}
	return mat, nil
}

func writeVectorAsMatrix(w io.Writer, vec []float64) error {
	return writeMatrix(w, [][]float64{vec})
}

func readVectorFromMatrix(r io.Reader) ([]float64, error) {
	mat, err := readMatrix(r)
	if err != nil {
		return nil, err
	}
	if len(mat) == 0 {
		return nil, nil
	}
	return mat[0], nil
}

// Save writes the HMM in the binary format described by spec.md §6.
func (h *HMM) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, binary.LittleEndian, uint32(h.currentState)); err != nil {
		return err
	}
	if err := writeVectorAsMatrix(bw, h.initial); err != nil {
		return err
	}
	if err := writeVectorAsMatrix(bw, h.initialAcc); err != nil {
		return err
	}
	if err := writeMatrix(bw, h.transitions); err != nil {
		return err
	}
	if err := writeMatrix(bw, h.transitionsAcc); err != nil {
		return err
	}
	if err := writeMatrix(bw, h.emissions); err != nil {
		return err
	}
	if err := writeMatrix(bw, h.emissionsAcc); err != nil {
		return err
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(h.alphabet))); err != nil {
		return err
	}
	if _, err := bw.Write(h.alphabet); err != nil {
		return err
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(h.processed)); err != nil {
		return err
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(h.learningBuffer))); err != nil {
		return err
	}
	for _, seq := range h.learningBuffer {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(seq))); err != nil {
			return err
		}
		if _, err := bw.WriteString(seq); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Load reads an HMM previously written by Save.
func (h *HMM) Load(r io.Reader) error {
	br := bufio.NewReader(r)

	var currentState uint32
	if err := binary.Read(br, binary.LittleEndian, &currentState); err != nil {
		return err
	}
	initial, err := readVectorFromMatrix(br)
	if err != nil {
		return err
	}
	initialAcc, err := readVectorFromMatrix(br)
	if err != nil {
		return err
	}
	transitions, err := readMatrix(br)
	if err != nil {
		return err
	}
	transitionsAcc, err := readMatrix(br)
	if err != nil {
		return err
	}
	emissions, err := readMatrix(br)
	if err != nil {
		return err
	}
	emissionsAcc, err := readMatrix(br)
	if err != nil {
		return err
	}

	var alphabetLen uint32
	if err := binary.Read(br, binary.LittleEndian, &alphabetLen); err != nil {
		return err
	}
	alphabet := make([]byte, alphabetLen)
	if _, err := io.ReadFull(br, alphabet); err != nil {
		return err
	}

	var processed uint32
	if err := binary.Read(br, binary.LittleEndian, &processed); err != nil {
		return err
	}

	var bufLen uint32
	if err := binary.Read(br, binary.LittleEndian, &bufLen); err != nil {
		return err
	}
	buffer := make([]string, bufLen)
	for i := range buffer {
		var seqLen uint32
		if err := binary.Read(br, binary.LittleEndian, &seqLen); err != nil {
			return err
		}
		seq := make([]byte, seqLen)
		if _, err := io.ReadFull(br, seq); err != nil {
			return err
		}
		buffer[i] = string(seq)
	}

	h.currentState = int(currentState)
	h.initial = initial
	h.initialAcc = initialAcc
	h.transitions = transitions
	h.transitionsAcc = transitionsAcc
	h.emissions = emissions
	h.emissionsAcc = emissionsAcc
	h.alphabet = alphabet
	h.index = buildIndex(alphabet)
	h.nStates = len(transitions)
	h.processed = uint64(processed)
	h.learningBuffer = buffer
	if h.rng == nil {
		h.rng = defaultRand()
	}
	return nil
}
