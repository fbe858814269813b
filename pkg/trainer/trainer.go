// Package trainer streams a line-delimited dataset of domain names
// through the entropy windows and the HMM in learn mode, then assembles
// and saves a model artifact (C7).
package trainer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ArturB/dns-gini-classifier/pkg/config"
	"github.com/ArturB/dns-gini-classifier/pkg/entropy"
	"github.com/ArturB/dns-gini-classifier/pkg/hmm"
	"github.com/ArturB/dns-gini-classifier/pkg/metrics"
	"github.com/ArturB/dns-gini-classifier/pkg/model"
	"github.com/ArturB/dns-gini-classifier/pkg/reporting"
)

// batchSize is how many lines are buffered before entropy-window
// learning is spread across parallel per-window workers.
const batchSize = 16384

// hmmBatchSize is the minibatch size passed to hmm.Learn.
const hmmBatchSize = 256

// hmmLearnRate is the gradient-free reinforcement rate applied at every
// hmm minibatch boundary.
const hmmLearnRate = 0.01

// Trainer drives dataset lines through C2 and C3 and produces a model
// Artifact.
type Trainer struct {
	cfg *config.Config
	log *reporting.Logger

	runID string

	windows map[int]*entropy.Window
	hmm     *hmm.HMM

	lengths      map[int]uint64
	totalDomains uint64
}

// New builds a Trainer with a fresh HMM over the lowercase DNS alphabet
// plus the end-of-name sentinel '$', and one entropy window per
// configured width.
func New(cfg *config.Config, log *reporting.Logger) (*Trainer, error) {
	alphabet := []byte("abcdefghijklmnopqrstuvwxyz0123456789-.$")
	h, err := hmm.NewRandom(16, alphabet, nil)
	if err != nil {
		return nil, fmt.Errorf("trainer: build hmm: %w", err)
	}

	windows := make(map[int]*entropy.Window, len(cfg.Entropy.WindowWidths))
	for _, width := range cfg.Entropy.WindowWidths {
		windows[width] = entropy.New(width, cfg.Entropy.Bins)
	}

	return &Trainer{
		cfg:     cfg,
		log:     log,
		runID:   uuid.NewString(),
		windows: windows,
		hmm:     h,
		lengths: make(map[int]uint64),
	}, nil
}

// Run streams lines from r, learning on each, and returns the assembled
// artifact. maxLines of 0 means unbounded.
func (t *Trainer) Run(ctx context.Context, r io.Reader, maxLines int) (*model.Artifact, error) {
	log := t.log.WithField("run_id", t.runID)
	log.Info("training run starting")

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var batch []string
	var processed int

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := t.learnEntropyParallel(ctx, batch); err != nil {
			return err
		}
		metrics.ObserveTrainingBatch()
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		if maxLines > 0 && processed >= maxLines {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		t.lengths[len(line)]++
		t.totalDomains++

		if len(line) >= t.cfg.HMM.MinLength {
			if err := t.hmm.Learn(line+"$", hmmLearnRate, hmmBatchSize); err != nil {
				log.Warn("skipping line: hmm learn failed", "error", err.Error())
				metrics.ObserveTrainingLineSkipped()
			}
		}

		if len(line) >= t.cfg.Entropy.MinLength {
			batch = append(batch, line)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return nil, err
				}
			}
		}

		processed++
		if processed%100000 == 0 {
			log.Info("training progress", "lines_processed", processed)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("trainer: reading dataset: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	artifact := model.New(uint32(t.cfg.Entropy.Bins))
	artifact.QueryMaxLength = t.queryMaxLength()
	artifact.MaxLengthPenalty = t.cfg.Length.MaxLengthPenalty
	artifact.HMM = t.hmm
	for width, w := range t.windows {
		artifact.EntropyDistribution[uint32(width)] = w.GetDistribution(entropy.Log)
	}

	log.Info("training run complete",
		"lines_processed", processed,
		"query_max_length", artifact.QueryMaxLength,
	)
	return artifact, nil
}

// learnEntropyParallel feeds one batch of lines into every configured
// entropy window, one goroutine per window, matching spec.md §4.7's
// "one worker per window" parallelism.
func (t *Trainer) learnEntropyParallel(ctx context.Context, lines []string) error {
	g, _ := errgroup.WithContext(ctx)
	for _, w := range t.windows {
		w := w
		g.Go(func() error {
			for _, line := range lines {
				if len(line) >= t.cfg.Entropy.MinLength {
					w.Learn(line)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// queryMaxLength returns the smallest length whose cumulative share of
// observed domain counts exceeds the configured percentile.
func (t *Trainer) queryMaxLength() uint32 {
	if t.totalDomains == 0 {
		return uint32(t.cfg.Length.MaxLength)
	}

	lens := make([]int, 0, len(t.lengths))
	for l := range t.lengths {
		lens = append(lens, l)
	}
	sort.Ints(lens)

	var cumulative uint64
	threshold := t.cfg.Length.Percentile
	for _, l := range lens {
		cumulative += t.lengths[l]
		if float64(cumulative)/float64(t.totalDomains) > threshold {
			return uint32(l)
		}
	}
	return uint32(lens[len(lens)-1])
}
