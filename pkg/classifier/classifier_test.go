package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ArturB/dns-gini-classifier/pkg/classification"
	"github.com/ArturB/dns-gini-classifier/pkg/config"
)

func writeList(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write list: %v", err)
	}
	return path
}

func baseConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Entropy.WindowWidths = []int{16}
	cfg.Entropy.Bins = 10
	cfg.Timeframe.Enabled = false
	return cfg
}

func TestClassifyEmptyQnameIsMinLength(t *testing.T) {
	cfg := baseConfig()
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := c.Classify(DnsQuery{Qname: ""})
	if got.Note != classification.MinLength {
		t.Fatalf("expected MIN_LENGTH for empty qname, got %v", got.Note)
	}
	if c.Verdict(got) != classification.Allow {
		t.Fatalf("expected MIN_LENGTH to allow, got %v", c.Verdict(got))
	}
}

func TestClassifyBlacklistWins(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig()
	cfg.Blacklist = writeList(t, dir, "black.txt", "evil\\.example\\.com")
	cfg.Whitelist = writeList(t, dir, "white.txt", "evil\\.example\\.com")

	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := c.Classify(DnsQuery{Qname: "sub.evil.example.com"})
	if got.Note != classification.Blacklist {
		t.Fatalf("expected BLACKLIST to win over whitelist, got %v", got.Note)
	}
	if c.Verdict(got) != classification.Reject {
		t.Fatalf("expected blacklist to reject, got %v", c.Verdict(got))
	}
}

func TestClassifyWhitelistAllows(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig()
	cfg.Whitelist = writeList(t, dir, "white.txt", "good\\.example\\.com")

	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := c.Classify(DnsQuery{Qname: "a.good.example.com"})
	if got.Note != classification.Whitelist {
		t.Fatalf("expected WHITELIST, got %v", got.Note)
	}
	if c.Verdict(got) != classification.Allow {
		t.Fatalf("expected whitelist to allow, got %v", c.Verdict(got))
	}
}

func TestClassifyMaxLengthPenalty(t *testing.T) {
	cfg := baseConfig()
	cfg.HMM.Enabled = false
	cfg.Entropy.Enabled = false
	cfg.HMM.Weight = 0
	cfg.Entropy.Weight = 0
	// at least one must be "enabled" per Validate, but Classify doesn't call Validate
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.queryMaxLength = 5
	c.maxLengthPenalty = 1.0

	long := "abcdefghij" // length 10
	got := c.Classify(DnsQuery{Qname: long})
	if got.Note != classification.MaxLength {
		t.Fatalf("expected MAX_LENGTH, got %v", got.Note)
	}
	if got.Score != -5 {
		t.Fatalf("expected score -5 (5 chars over * penalty 1.0), got %v", got.Score)
	}
}

func TestClassifyPacketTakesWorst(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig()
	cfg.Blacklist = writeList(t, dir, "black.txt", "bad\\.example\\.com")

	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.ClassifyPacket([]DnsQuery{
		{Qname: "fine.example.com"},
		{Qname: "x.bad.example.com"},
	})
	if err != nil {
		t.Fatalf("ClassifyPacket: %v", err)
	}
	if got.Note != classification.Blacklist {
		t.Fatalf("expected worst classification to be BLACKLIST, got %v", got.Note)
	}
}

func TestClassifyPacketRequiresQuestions(t *testing.T) {
	cfg := baseConfig()
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.ClassifyPacket(nil); err == nil {
		t.Fatalf("expected error for empty packet")
	}
}
