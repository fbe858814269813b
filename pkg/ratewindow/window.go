// Package ratewindow tracks how many queries have arrived within a
// trailing time period and flags queries once a configured rate is
// exceeded. A single window counts all queries together; it does not
// keep separate counts per source.
package ratewindow

import (
	"container/list"
	"time"

	"github.com/ArturB/dns-gini-classifier/pkg/classification"
	"github.com/ArturB/dns-gini-classifier/pkg/metrics"
)

type entry struct {
	domain    string
	timestamp int64
}

// Window is a FIFO of {domain, unix_timestamp} entries bounded by a
// trailing time period.
type Window struct {
	period     int64
	maxQueries uint64
	penalty    float64

	fifo *list.List

	// now, when set, overrides time.Now for deterministic tests.
	now func() time.Time
}

// New builds a rate window with the given period (seconds), query
// ceiling, and score penalty applied once that ceiling is exceeded.
func New(periodSecs int64, maxQueries uint64, penalty float64) *Window {
	return &Window{
		period:     periodSecs,
		maxQueries: maxQueries,
		penalty:    penalty,
		fifo:       list.New(),
		now:        time.Now,
	}
}

func (w *Window) popOld(cutoff int64) {
	for w.fifo.Len() > 0 {
		front := w.fifo.Front().Value.(entry)
		if front.timestamp >= cutoff {
			break
		}
		w.fifo.Remove(w.fifo.Front())
	}
}

// Insert records one query for domain and returns the resulting
// classification: SCORE/0 if the trailing count is within bounds,
// INVALID_TIMEFRAME with the configured penalty otherwise.
func (w *Window) Insert(domain string) classification.Classification {
	now := w.now().Unix()
	w.popOld(now - w.period)
	w.fifo.PushBack(entry{domain: domain, timestamp: now})

	length := uint64(w.fifo.Len())
	if length <= w.maxQueries {
		return classification.Classification{Domain: domain, Note: classification.Score, Score: 0}
	}
	metrics.ObserveRateWindowRejection()
	return classification.Classification{
		Domain: domain,
		Note:   classification.InvalidTimeframe,
		Score:  w.penalty,
		Score1: float64(length),
		Score2: float64(w.maxQueries),
	}
}

// Len returns the current number of tracked queries.
func (w *Window) Len() int { return w.fifo.Len() }
