package ratewindow

import (
	"testing"
	"time"

	"github.com/ArturB/dns-gini-classifier/pkg/classification"
)

func TestInsertWithinLimitReturnsScore(t *testing.T) {
	w := New(60, 5, 2.0)
	for i := 0; i < 5; i++ {
		c := w.Insert("a.example.com")
		if c.Note != classification.Score || c.Score != 0 {
			t.Fatalf("expected SCORE/0 within limit, got %+v", c)
		}
	}
}

func TestInsertOverLimitReturnsInvalidTimeframe(t *testing.T) {
	w := New(60, 2, 3.5)
	w.Insert("a")
	w.Insert("b")
	c := w.Insert("c")
	if c.Note != classification.InvalidTimeframe {
		t.Fatalf("expected INVALID_TIMEFRAME, got %v", c.Note)
	}
	if c.Score != 3.5 {
		t.Fatalf("expected penalty score 3.5, got %v", c.Score)
	}
	if c.Score1 != 3 || c.Score2 != 2 {
		t.Fatalf("expected score1=3 score2=2, got score1=%v score2=%v", c.Score1, c.Score2)
	}
}

func TestPopsStaleEntries(t *testing.T) {
	w := New(10, 1, 1.0)
	base := time.Unix(1_700_000_000, 0)
	w.now = func() time.Time { return base }
	w.Insert("old")

	w.now = func() time.Time { return base.Add(20 * time.Second) }
	c := w.Insert("new")
	if c.Note != classification.Score {
		t.Fatalf("expected stale entry evicted and count within limit, got %+v", c)
	}
	if w.Len() != 1 {
		t.Fatalf("expected len 1 after eviction, got %d", w.Len())
	}
}
