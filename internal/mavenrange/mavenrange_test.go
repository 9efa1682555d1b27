package mavenrange

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToEquivalent(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"[1.0,2.0)", ">=1.0 <2.0"},
		{"(,1.0],[1.2,)", "<=1.0 || >=1.2"},
		{"[1.14.4]", "1.14.4"},
		{"1.5", "1.5"},
		{"(1.0,2.0]", ">1.0 <=2.0"},
		{"[36.0.0,)", ">=36.0.0"},
		{"(,)", "*"},
		{"1.0, [2.0,3.0)", "1.0 || >=2.0 <3.0"},
		{"[1.0,2.0), [3.0,)", ">=1.0 <2.0 || >=3.0"},
		{"(,1.0],  [1.2,)", "<=1.0 || >=1.2"},
		{" [1.0,2.0) ", ">=1.0 <2.0"},
		{"(1.5]", ">1.5 <=1.5"},
		{"[1.0,2.0", ">=1.0 <2.0"},
		{"[forge-47.1,)", ">=forge-47.1"},
	}
	for _, tt := range tests {
		got, err := ToEquivalent(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestParseSets(t *testing.T) {
	r, err := Parse("(,1.0],[1.2,)")
	require.NoError(t, err)
	require.Len(t, r, 2)

	assert.Nil(t, r[0].Start)
	require.NotNil(t, r[0].End)
	assert.Equal(t, "1.0", *r[0].End)
	assert.True(t, r[0].EndInclusive)

	require.NotNil(t, r[1].Start)
	assert.Equal(t, "1.2", *r[1].Start)
	assert.True(t, r[1].StartInclusive)
	assert.Nil(t, r[1].End)
}

func TestToEquivalentErrors(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"[]",
		"1.0,",
		"1.0, ",
		"1.0, , 2.0",
		"1.0,,2.0",
		"[1.0,2.0)x",
		"1.0]",
		"[1,2,3]",
	}
	for _, in := range inputs {
		_, err := ToEquivalent(in)
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, ErrUnparseableRange), "input %q: %v", in, err)
	}
}

func TestStepBudget(t *testing.T) {
	in := strings.Repeat("1,", maxSteps) + "1"
	_, err := Parse(in)
	require.Error(t, err)

	var ure *UnparseableRangeError
	require.True(t, errors.As(err, &ure))
	assert.Contains(t, ure.Reason, "steps")
}
