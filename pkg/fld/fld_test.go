package fld

import "testing"

func TestExtract(t *testing.T) {
	cases := []struct {
		name  string
		level int
		want  string
	}{
		{"", 2, ""},
		{"a", 1, "a"},
		{"a", 2, "a"},
		{"a.b.c.d", 2, "c.d"},
		{"s2.smtp.google.com", 2, "google.com"},
		{"google.com", 2, "google.com"},
		{"com", 2, "com"},
	}

	for _, c := range cases {
		if got := Extract(c.name, c.level); got != c.want {
			t.Errorf("Extract(%q, %d) = %q, want %q", c.name, c.level, got, c.want)
		}
	}
}
