// Package classifier implements the decision pipeline (C6): given a
// parsed DNS query it traverses deny-list, allow-list, HMM score,
// entropy score, length-penalty, and rate-window checks in order and
// produces a typed Classification, and maps that to an allow/reject
// Verdict.
package classifier

import (
	"fmt"
	"math"

	"github.com/ArturB/dns-gini-classifier/pkg/classification"
	"github.com/ArturB/dns-gini-classifier/pkg/config"
	"github.com/ArturB/dns-gini-classifier/pkg/entropy"
	"github.com/ArturB/dns-gini-classifier/pkg/hmm"
	"github.com/ArturB/dns-gini-classifier/pkg/model"
	"github.com/ArturB/dns-gini-classifier/pkg/ratewindow"
)

// DnsQuery is the parsed DNS question the packet-path decoder hands to
// the classifier. malformed packets never reach here.
type DnsQuery struct {
	Qname string
	Qtype uint16
}

// Classifier holds the warm, per-process state the decision pipeline
// mutates: entropy windows, the HMM, the rate window, and the compiled
// allow/deny lists. It is not safe for concurrent use from more than one
// packet-path goroutine at a time (see spec.md §5: the packet path is
// single-threaded cooperative).
type Classifier struct {
	cfg *config.Config

	blacklist *List
	whitelist *List

	windows map[int]*entropy.Window
	hmm     *hmm.HMM
	rate    *ratewindow.Window

	queryMaxLength   uint32
	maxLengthPenalty float64
}

// New builds a Classifier from configuration and a trained artifact.
// artifact may be nil, in which case the classifier falls back to an
// empty HMM and the configured length ceiling; HMM/entropy scores then
// contribute nothing useful, but blacklist/whitelist/length/timeframe
// checks still behave normally.
func New(cfg *config.Config, artifact *model.Artifact) (*Classifier, error) {
	blacklist, err := LoadList(cfg.Blacklist)
	if err != nil {
		return nil, err
	}
	whitelist, err := LoadList(cfg.Whitelist)
	if err != nil {
		return nil, err
	}

	c := &Classifier{
		cfg:       cfg,
		blacklist: blacklist,
		whitelist: whitelist,
		windows:   make(map[int]*entropy.Window, len(cfg.Entropy.WindowWidths)),
		rate:      ratewindow.New(cfg.Timeframe.PeriodSecs, cfg.Timeframe.MaxQueries, cfg.Timeframe.Penalty),
	}

	for _, width := range cfg.Entropy.WindowWidths {
		c.windows[width] = entropy.New(width, cfg.Entropy.Bins)
	}

	if artifact != nil {
		c.queryMaxLength = artifact.QueryMaxLength
		c.maxLengthPenalty = artifact.MaxLengthPenalty
		c.hmm = artifact.HMM
		for width, dist := range artifact.EntropyDistribution {
			w, ok := c.windows[int(width)]
			if !ok {
				continue
			}
			w.SetDistribution(dist, uint64(cfg.Model.Weight*float64(len(dist))), entropy.Log)
		}
	} else {
		c.hmm = hmm.NewEmpty()
		c.queryMaxLength = uint32(cfg.Length.MaxLength)
		c.maxLengthPenalty = cfg.Length.MaxLengthPenalty
	}

	return c, nil
}

// Classify scores a single DNS question per spec.md §4.6.
func (c *Classifier) Classify(q DnsQuery) classification.Classification {
	qname := q.Qname

	if c.blacklist.Match(qname) {
		return classification.Classification{Domain: qname, Note: classification.Blacklist, Score: 0}
	}
	if c.whitelist.Match(qname) {
		return classification.Classification{Domain: qname, Note: classification.Whitelist, Score: 0}
	}
	if len(qname) < c.cfg.Length.MinLength {
		return classification.Classification{Domain: qname, Note: classification.MinLength, Score: 0}
	}

	hmmScore, hmmWeight := c.hmmScore(qname)
	entropyScore, entropyWeight := c.entropyScore(qname)

	result := classification.Classification{Domain: qname, Note: classification.Score}
	if hmmWeight+entropyWeight > 0 {
		result.Score = (hmmWeight*hmmScore + entropyWeight*entropyScore) / (hmmWeight + entropyWeight)
	}
	result.Score1 = hmmScore
	result.Score2 = entropyScore

	if uint32(len(qname)) > c.queryMaxLength {
		result.Score -= float64(uint32(len(qname))-c.queryMaxLength) * c.maxLengthPenalty
		result.Note = classification.MaxLength
		result.Score1 = float64(len(qname))
		result.Score2 = float64(c.queryMaxLength)
	}

	if c.cfg.Timeframe.Enabled {
		tf := c.rate.Insert(qname)
		if tf.Note == classification.InvalidTimeframe {
			result.Note = classification.InvalidTimeframe
			result.Score -= tf.Score
		}
	}

	return result
}

func (c *Classifier) hmmScore(qname string) (score, weight float64) {
	if !c.cfg.HMM.Enabled || len(qname) < c.cfg.HMM.MinLength {
		return 0, 0
	}
	path, err := c.hmm.Viterbi(qname + "$")
	if err != nil {
		return 0, 0
	}
	score = path.Prob/float64(len(qname)) +
		math.Log10(float64(len(c.hmm.Alphabet()))) +
		math.Log10(float64(c.hmm.NumStates())) +
		c.cfg.HMM.Bias
	return score, c.cfg.HMM.Weight
}

func (c *Classifier) entropyScore(qname string) (score, weight float64) {
	if !c.cfg.Entropy.Enabled || len(qname) < c.cfg.Entropy.MinLength || len(c.windows) == 0 {
		return 0, 0
	}
	var sum float64
	for _, w := range c.windows {
		sum += w.Classify(qname)
	}
	score = sum/float64(len(c.windows)) + c.cfg.Entropy.Bias
	return score, c.cfg.Entropy.Weight
}

// ClassifyPacket scores every question in a packet and returns the
// minimum by (note ordinal, score), per spec.md §4.6.
func (c *Classifier) ClassifyPacket(questions []DnsQuery) (classification.Classification, error) {
	if len(questions) == 0 {
		return classification.Classification{}, fmt.Errorf("classifier: packet has no questions")
	}
	worst := classification.Sentinel()
	for _, q := range questions {
		result := c.Classify(q)
		if result.Less(worst) {
			worst = result
		}
	}
	return worst, nil
}

// Verdict maps a Classification to Allow/Reject using the configured
// reject threshold.
func (c *Classifier) Verdict(cl classification.Classification) classification.Verdict {
	return classification.VerdictFor(cl, c.cfg.Reject.Threshold)
}
