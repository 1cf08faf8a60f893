package label

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/USEPA/git-job-log/internal/jobid"
	"github.com/USEPA/git-job-log/internal/testutil"
)

func longestLine(s string) int {
	longest := 0
	for _, line := range strings.Split(s, "\n") {
		if n := utf8.RuneCountInString(line); n > longest {
			longest = n
		}
	}
	return longest
}

func TestLabel_Packing(t *testing.T) {
	job := jobid.MustParse("home/yard/lawn/mow/compost/clippings/bin")

	assert.Equal(t, "home/yard/lawn/\nmow/compost/\nclippings/bin", Label(job, 16))
	assert.Equal(t, "home/yard/lawn/mow/\ncompost/clippings/\nbin", Label(job, 20))
}

func TestLabel_WiderBudgetProducesLongerLine(t *testing.T) {
	job := jobid.MustParse("home/yard/lawn/mow/compost/clippings/bin")
	assert.Greater(t, longestLine(Label(job, 20)), longestLine(Label(job, 16)))
}

func TestLabel_CapIsBudgetPlusSeparator(t *testing.T) {
	jobs := append(testutil.YardJobs(),
		"work/commute/bus-pass/renew",
		"a/b/c/d/e/f/g/h/i/j/k/l/m/n/o/p",
		"home/yard/lawn/mow/compost/clippings/bin",
	)
	for _, s := range jobs {
		job := jobid.MustParse(s)
		for _, width := range []int{16, 20} {
			got := Label(job, width)
			assert.LessOrEqual(t, longestLine(got), width+1, "%s at %d: %q", s, width, got)
			assert.Equal(t, s, strings.ReplaceAll(got, "\n", ""), "label must keep every character")
		}
	}
}

func TestLabel_LongSegmentKeptWhole(t *testing.T) {
	job := jobid.MustParse("x/an-extremely-long-segment-name/y")
	assert.Equal(t, "x/\nan-extremely-long-segment-name/\ny", Label(job, 10))
}

func TestLabel_ShortFitsOneLine(t *testing.T) {
	assert.Equal(t, "a/b", Label(jobid.MustParse("a/b"), 16))
	assert.Equal(t, "mow", Label(jobid.MustParse("mow"), 16))
}

func TestLabel_Deterministic(t *testing.T) {
	job := jobid.MustParse("home/yard/tools/find/gas_tank")
	assert.Equal(t, Label(job, 16), Label(job, 16))
}

func TestMatch(t *testing.T) {
	job := jobid.MustParse("home/yard/lawn/mow")

	tests := []struct {
		patterns []string
		want     bool
	}{
		{[]string{"lawn", "mow"}, true},
		{[]string{"home"}, true},
		{[]string{"mow"}, true},
		{[]string{"la", "mo"}, true},           // prefix match per segment
		{[]string{"yard", "lawn"}, true},       // window in the middle
		{[]string{"l.*", "m"}, true},           // regular expressions
		{[]string{"awn"}, false},               // anchored at segment start
		{[]string{"mow", "lawn"}, false},       // order matters
		{[]string{"home", "lawn"}, false},      // must be contiguous
		{[]string{"home", "yard", "lawn", "mow", "x"}, false},
		{nil, false},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.patterns, "/"), func(t *testing.T) {
			got, err := Match(job, tt.patterns)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatch_InvalidPattern(t *testing.T) {
	_, err := Match(jobid.MustParse("a/b"), []string{"("})
	assert.Error(t, err)
}

func TestAnnotator(t *testing.T) {
	a, err := NewAnnotator(16, map[string]string{
		"lawn/mow": "Mow front and back",
		"lawn":     "Lawn care",
		"garden":   "Garden",
	})
	require.NoError(t, err)

	label, descs := a.Annotate(jobid.MustParse("home/yard/lawn/mow"))
	assert.Equal(t, "home/yard/lawn/\nmow", label)
	assert.Equal(t, []string{"Lawn care", "Mow front and back"}, descs)

	_, descs = a.Annotate(jobid.MustParse("home/yard/paths/sweep"))
	assert.Empty(t, descs)
}

func TestNewAnnotator_DefaultsWidth(t *testing.T) {
	a, err := NewAnnotator(0, nil)
	require.NoError(t, err)

	label, _ := a.Annotate(jobid.MustParse("home/yard/lawn/mow"))
	assert.Equal(t, Label(jobid.MustParse("home/yard/lawn/mow"), DefaultWidth), label)
}

func TestNewAnnotator_InvalidKey(t *testing.T) {
	_, err := NewAnnotator(16, map[string]string{"lawn/[": "broken"})
	assert.Error(t, err)
}
