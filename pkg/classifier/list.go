package classifier

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// List is a compiled deny/allow list: one regex fragment per
// non-empty, non-comment line, each matched as a full-string suffix
// pattern ".*<fragment>".
type List struct {
	patterns []*regexp.Regexp
}

// LoadList reads path and compiles each line into a pattern. An empty
// path yields an empty (never-matching) list.
func LoadList(path string) (*List, error) {
	if path == "" {
		return &List{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("classifier: open list %s: %w", path, err)
	}
	defer f.Close()

	var l List
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		re, err := regexp.Compile("^.*" + line + "$")
		if err != nil {
			return nil, fmt.Errorf("classifier: bad pattern %q in %s: %w", line, path, err)
		}
		l.patterns = append(l.patterns, re)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("classifier: read list %s: %w", path, err)
	}
	return &l, nil
}

// Match reports whether qname matches any pattern in the list.
func (l *List) Match(qname string) bool {
	for _, re := range l.patterns {
		if re.MatchString(qname) {
			return true
		}
	}
	return false
}
