// Package metrics exposes opt-in, low-overhead Prometheus counters and
// histograms for the classifier: classification outcomes by note,
// score distributions, and training throughput. When disabled, every
// public function is a no-op, so it is safe to call from the packet
// path unconditionally.
package metrics

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var enabled atomic.Bool

var (
	classificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dns_classifier_classifications_total",
		Help: "Total classifications, partitioned by note.",
	}, []string{"note"})

	verdictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dns_classifier_verdicts_total",
		Help: "Total verdicts, partitioned by allow/reject.",
	}, []string{"verdict"})

	hmmScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dns_classifier_hmm_score",
		Help:    "Distribution of HMM component scores.",
		Buckets: prometheus.LinearBuckets(-10, 1, 20),
	})

	entropyScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dns_classifier_entropy_score",
		Help:    "Distribution of entropy component scores.",
		Buckets: prometheus.LinearBuckets(-10, 1, 20),
	})

	rateWindowRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_classifier_rate_window_rejections_total",
		Help: "Total queries rejected by the rate window.",
	})

	trainingBatchesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_classifier_training_batches_processed_total",
		Help: "Total dataset batches fed to the entropy windows by the trainer.",
	})

	trainingLinesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_classifier_training_lines_skipped_total",
		Help: "Total dataset lines skipped by the trainer due to errors.",
	})
)

func init() {
	prometheus.MustRegister(
		classificationsTotal,
		verdictsTotal,
		hmmScore,
		entropyScore,
		rateWindowRejections,
		trainingBatchesProcessed,
		trainingLinesSkipped,
	)
}

// Enable turns metrics recording on and, if addr is non-empty, starts a
// dedicated HTTP server serving /metrics on addr until ctx is canceled.
func Enable(ctx context.Context, addr string) {
	enabled.Store(true)
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	go func() {
		_ = server.ListenAndServe()
	}()
}

// Enabled reports whether metrics recording is active.
func Enabled() bool { return enabled.Load() }

// ObserveClassification records one classification outcome.
func ObserveClassification(note string, verdict string) {
	if !enabled.Load() {
		return
	}
	classificationsTotal.WithLabelValues(note).Inc()
	verdictsTotal.WithLabelValues(verdict).Inc()
}

// ObserveScores records the HMM and entropy component scores of one
// classification.
func ObserveScores(hmm, entropy float64) {
	if !enabled.Load() {
		return
	}
	hmmScore.Observe(hmm)
	entropyScore.Observe(entropy)
}

// ObserveRateWindowRejection records one rate-window rejection.
func ObserveRateWindowRejection() {
	if !enabled.Load() {
		return
	}
	rateWindowRejections.Inc()
}

// ObserveTrainingBatch records one dataset batch fed to the entropy
// windows by the trainer.
func ObserveTrainingBatch() {
	if !enabled.Load() {
		return
	}
	trainingBatchesProcessed.Inc()
}

// ObserveTrainingLineSkipped records one dataset line skipped by the
// trainer due to an error.
func ObserveTrainingLineSkipped() {
	if !enabled.Load() {
		return
	}
	trainingLinesSkipped.Inc()
}
