package classification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteOrdering(t *testing.T) {
	assert.Less(t, int(Blacklist), int(Whitelist))
	assert.Less(t, int(Whitelist), int(MinLength))
	assert.Less(t, int(MinLength), int(MaxLength))
	assert.Less(t, int(MaxLength), int(InvalidTimeframe))
	assert.Less(t, int(InvalidTimeframe), int(Score))
}

func TestLessComparesNoteThenScore(t *testing.T) {
	a := Classification{Note: Score, Score: 0.9}
	b := Classification{Note: Score, Score: 0.1}
	require.True(t, b.Less(a), "expected lower score to sort first within the same note")

	c := Classification{Note: Blacklist, Score: 100}
	d := Classification{Note: Score, Score: -100}
	require.True(t, c.Less(d), "expected BLACKLIST to sort before SCORE regardless of score")
}

func TestVerdictFor(t *testing.T) {
	cases := []struct {
		c    Classification
		want Verdict
	}{
		{Classification{Note: Blacklist}, Reject},
		{Classification{Note: Whitelist}, Allow},
		{Classification{Note: MinLength}, Allow},
		{Classification{Note: MaxLength}, Reject},
		{Classification{Note: InvalidTimeframe}, Reject},
		{Classification{Note: Score, Score: 0.5}, Allow},
		{Classification{Note: Score, Score: -0.5}, Reject},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, VerdictFor(tc.c, 0), "VerdictFor(%+v)", tc.c)
	}
}

func TestSentinelLosesToAnyRealClassification(t *testing.T) {
	s := Sentinel()
	real := Classification{Note: Score, Score: -3}
	require.True(t, real.Less(s), "expected any real classification to beat the sentinel")
}
