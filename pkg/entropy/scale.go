package entropy

// Scale selects how a histogram-backed distribution is exported or
// reconstructed: as raw fractions (Linear) or as log10 fractions (Log).
type Scale int

const (
	Linear Scale = iota
	Log
)

func (s Scale) String() string {
	if s == Log {
		return "log"
	}
	return "linear"
}
