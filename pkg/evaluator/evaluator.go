// Package evaluator streams domain names through the decision pipeline
// and emits a CSV score report (C8).
package evaluator

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ArturB/dns-gini-classifier/pkg/classifier"
	"github.com/ArturB/dns-gini-classifier/pkg/config"
	"github.com/ArturB/dns-gini-classifier/pkg/metrics"
	"github.com/ArturB/dns-gini-classifier/pkg/reporting"
)

// progressInterval is how often progress is logged, per spec.md §4.8.
const progressInterval = 1024

// Evaluator drives dataset lines through the classifier and writes one
// "domain;note;score1;score2;score" CSV row per evaluated line, via
// Classification.String().
type Evaluator struct {
	cfg *config.Config
	c   *classifier.Classifier
	log *reporting.Logger
}

// New builds an Evaluator around an already-constructed Classifier.
func New(cfg *config.Config, c *classifier.Classifier, log *reporting.Logger) *Evaluator {
	return &Evaluator{cfg: cfg, c: c, log: log}
}

// Run streams lines from r, classifying each, and writes
// "domain;note;score1;score2;score" rows to w. maxLines of 0 means
// unbounded.
func (e *Evaluator) Run(r io.Reader, w io.Writer, maxLines int) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	bw := bufio.NewWriter(w)
	defer bw.Flush()

	var processed int
	for scanner.Scan() {
		if maxLines > 0 && processed >= maxLines {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if len(line) < e.cfg.HMM.MinLength {
			continue
		}

		result := e.c.Classify(classifier.DnsQuery{Qname: line})
		verdict := e.c.Verdict(result)
		metrics.ObserveClassification(result.Note.String(), verdict.String())
		metrics.ObserveScores(result.Score1, result.Score2)
		e.log.Classification(verdict.String(), "query classified", "domain", result.Domain, "note", result.Note.String(), "verdict", verdict.String())

		if _, err := fmt.Fprintf(bw, "%s\n", result.String()); err != nil {
			return fmt.Errorf("evaluator: write row: %w", err)
		}

		processed++
		if processed%progressInterval == 0 {
			e.log.Info("evaluation progress", "lines_processed", processed)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("evaluator: reading dataset: %w", err)
	}
	return bw.Flush()
}
