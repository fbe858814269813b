// Package entropy maintains fixed-capacity sliding windows of recently
// observed domains and incrementally tracks a normalized Shannon-entropy
// statistic over each window, together with a histogram of its values
// that serves as a probability distribution over "normal" traffic.
package entropy

import (
	"container/list"
	"math"

	"github.com/ArturB/dns-gini-classifier/pkg/fld"
)

// numericFloor guards against current_metric drifting into noise after
// repeated incremental updates; below it, the metric is recomputed from
// scratch rather than trusted.
const numericFloor = 1e-10

// Window is one sliding FIFO of FLDs with incremental Shannon entropy
// and a histogram of observed entropy values.
type Window struct {
	width int
	bins  int

	fifo  *list.List
	freq  map[string]int
	size  int

	currentMetric float64
	histogram     []uint64
	stateShift    bool
}

// New creates an empty entropy window with the given FIFO capacity
// (width) and histogram resolution (bins).
func New(width, bins int) *Window {
	return &Window{
		width:     width,
		bins:      bins,
		fifo:      list.New(),
		freq:      make(map[string]int),
		histogram: make([]uint64, bins),
	}
}

// Width returns the configured FIFO capacity.
func (w *Window) Width() int { return w.width }

// Bins returns the number of histogram bins.
func (w *Window) Bins() int { return w.bins }

// domainMetric computes h(k) = -(k/size)*ln(k/size) for k>0, 0 for k=0,
// against the window's current size.
func (w *Window) domainMetric(count int) float64 {
	if count <= 0 {
		return 0
	}
	freq := float64(count) / float64(w.size)
	return -freq * math.Log(freq)
}

// fifoMetric recomputes current_metric from scratch over the full
// frequency multiset. A window with fewer than two elements has
// undefined normalized entropy by the H(p)/ln(size) formula (ln(1)=0);
// it is treated as entropy 0.
func (w *Window) fifoMetric() float64 {
	if w.size <= 1 {
		return 0
	}
	var sum float64
	for _, count := range w.freq {
		sum += w.domainMetric(count)
	}
	return sum / math.Log(float64(w.size))
}

// insert pushes a domain onto the FIFO and recomputes the metric from
// scratch.
func (w *Window) insert(domain string) {
	w.fifo.PushBack(domain)
	w.freq[domain]++
	w.size++
	w.currentMetric = w.fifoMetric()
}

// pop removes the head of the FIFO and recomputes the metric from
// scratch.
func (w *Window) pop() {
	front := w.fifo.Front()
	domain := front.Value.(string)
	w.fifo.Remove(front)
	w.size--
	w.freq[domain]--
	if w.freq[domain] == 0 {
		delete(w.freq, domain)
	}
	w.currentMetric = w.fifoMetric()
}

// forwardShift is the hot path: push domain, pop the head, and update
// current_metric via a local delta instead of a full recomputation.
func (w *Window) forwardShift(domain string) {
	front := w.fifo.Front()
	popped := front.Value.(string)

	if domain == popped {
		w.fifo.PushBack(domain)
		w.fifo.Remove(front)
		return
	}

	oldIn := w.freq[domain]
	oldOut := w.freq[popped]

	oldInMetric := w.domainMetric(oldIn)
	oldOutMetric := w.domainMetric(oldOut)
	newInMetric := w.domainMetric(oldIn + 1)
	newOutMetric := w.domainMetric(oldOut - 1)

	deltaIn := newInMetric - oldInMetric
	deltaOut := newOutMetric - oldOutMetric

	if w.size > 1 {
		w.currentMetric += (deltaIn + deltaOut) / math.Log(float64(w.size))
	}

	w.freq[domain] = oldIn + 1
	w.freq[popped] = oldOut - 1
	if w.freq[popped] == 0 {
		delete(w.freq, popped)
	}

	w.fifo.PushBack(domain)
	w.fifo.Remove(front)

	if w.currentMetric < numericFloor {
		w.currentMetric = w.fifoMetric()
	}
}

func (w *Window) bin() int {
	b := int(math.Floor(w.currentMetric * float64(w.bins)))
	if b >= w.bins {
		b = w.bins - 1
	}
	if b < 0 {
		b = 0
	}
	return b
}

// Learn feeds one raw domain name into the window: while the FIFO has
// not reached capacity, it is simply inserted; once the window is full,
// every subsequent name shifts the window and contributes one
// observation to the entropy histogram.
func (w *Window) Learn(rawName string) {
	domain := fld.Extract(rawName, 2)
	if !w.stateShift {
		w.insert(domain)
		if w.size >= w.width {
			w.stateShift = true
		}
		return
	}

	w.forwardShift(domain)
	w.histogram[w.bin()]++
}

// Classify scores a raw domain name against the window's trained
// entropy distribution. Before the window fills, it warms up by
// inserting and always returns 0.
func (w *Window) Classify(rawName string) float64 {
	domain := fld.Extract(rawName, 2)
	if !w.stateShift {
		w.insert(domain)
		if w.size >= w.width {
			w.stateShift = true
		}
		return 0
	}

	w.forwardShift(domain)
	bin := w.bin()

	var total uint64
	for _, c := range w.histogram {
		total += c
	}
	if total == 0 {
		return 0
	}

	domainFreq := float64(w.freq[domain]) / float64(w.size)
	metricProb := float64(w.histogram[bin]) / float64(total)
	floor := 1.0 / float64(total)
	p := math.Max(floor, metricProb)
	return domainFreq * math.Log10(p)
}

// GetDistribution exports the trained histogram as a probability
// distribution, linear or log10-scaled (with Laplace +1 smoothing in
// the log case so empty bins contribute a finite floor).
func (w *Window) GetDistribution(scale Scale) []float64 {
	var total uint64
	for _, c := range w.histogram {
		total += c
	}

	out := make([]float64, w.bins)
	for i, c := range w.histogram {
		if scale == Log {
			out[i] = math.Log10(float64(c+1) / float64(total))
		} else {
			out[i] = float64(c) / float64(total)
		}
	}
	return out
}

// SetDistribution reconstructs the histogram from an exported
// distribution and an effective observation weight. weight becomes the
// effective total used by Classify.
func (w *Window) SetDistribution(dist []float64, weight uint64, scale Scale) {
	w.bins = len(dist)
	w.histogram = make([]uint64, w.bins)
	for i, v := range dist {
		var count float64
		if scale == Log {
			count = float64(weight) * math.Pow(10, v)
		} else {
			count = float64(weight) * v
		}
		if count < 0 {
			count = 0
		}
		w.histogram[i] = uint64(math.Round(count))
	}
}
