package embedding

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_appleBanana(t *testing.T) {
	ld := NewLoader(nil)
	idx, report, err := ld.Load(context.Background(), strings.NewReader("apple,0.1,0.2\nbanana,0.3,-0.4\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"apple", "banana"}, idx.Vocabulary())
	assert.Equal(t, [][]float64{{0.1, 0.2}, {0.3, -0.4}}, idx.Vectors())
	assert.Equal(t, 2, idx.Dimensions())
	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 2, report.Loaded)
	assert.Empty(t, report.Skipped)
}

func TestLoad_roundTripPreservesRowOrder(t *testing.T) {
	wantWords := []string{"the", "of", "to", "and"}
	wantVecs := [][]float64{
		{0.418, 0.24968, -0.41242},
		{0.70853, 0.57088, -0.4716},
		{0.68047, -0.039263, 0.30186},
		{2.6e-01, 1.2e-3, -7.5e+00},
	}
	var b strings.Builder
	for i, w := range wantWords {
		b.WriteString(w)
		for _, v := range wantVecs[i] {
			b.WriteString(",")
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		b.WriteString("\n")
	}

	idx, _, err := NewLoader(nil).Load(context.Background(), strings.NewReader(b.String()))
	require.NoError(t, err)
	require.Equal(t, idx.Len(), len(idx.Vectors()))
	assert.Equal(t, wantWords, idx.Vocabulary())
	assert.Equal(t, wantVecs, idx.Vectors())
}

func TestLoad_vectorLengthIsColumnsMinusOne(t *testing.T) {
	input := "a1,1,2,3,4\nb2,5,6,7,8\nc3,9,10,11,12\n"
	idx, _, err := NewLoader(nil).Load(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, len(idx.Vocabulary()), len(idx.Vectors()))
	for _, v := range idx.Vectors() {
		assert.Len(t, v, 4)
	}
}

func TestLoad_scientificNotationAndCRLF(t *testing.T) {
	idx, _, err := NewLoader(nil).Load(context.Background(), strings.NewReader("x,1e-3,-2.5E+2\r\ny,0,3\r\n"))
	require.NoError(t, err)
	v, ok := idx.Vector("x")
	require.True(t, ok)
	assert.Equal(t, []float64{0.001, -250}, v)
}

func TestLoad_blankLinesIgnored(t *testing.T) {
	idx, report, err := NewLoader(nil).Load(context.Background(), strings.NewReader("\napple,1,2\n\n  \nbanana,3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 2, report.Rows)
}

func TestLoad_skipPolicy(t *testing.T) {
	input := "apple,0.1,0.2\nbad,0.3,oops\nshort,0.5\nonly\ncherry,0.7,0.8\n"
	idx, report, err := NewLoader(nil, WithPolicy(PolicySkip)).Load(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"apple", "cherry"}, idx.Vocabulary())
	assert.Equal(t, 5, report.Rows)
	assert.Equal(t, 2, report.Loaded)
	require.Len(t, report.Skipped, 3)
	assert.Equal(t, 2, report.Skipped[0].Line)
	assert.Contains(t, report.Skipped[0].Reason, "field 2")
	assert.Equal(t, 3, report.Skipped[1].Line)
	assert.Contains(t, report.Skipped[1].Reason, "dimension mismatch")
	assert.Equal(t, 4, report.Skipped[2].Line)
	assert.Contains(t, report.Skipped[2].Reason, "no coordinates")
}

func TestLoad_skippedReasonOmitsRowText(t *testing.T) {
	_, report, err := NewLoader(nil).Load(context.Background(), strings.NewReader("api_key,hunter2-SECRET\n"))
	require.NoError(t, err)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "line 1 field 1: not a number: invalid syntax", report.Skipped[0].Reason)
}

func TestLoad_skippedFirstRowDoesNotFixDimensions(t *testing.T) {
	idx, report, err := NewLoader(nil).Load(context.Background(), strings.NewReader("bad,x,y,z\ngood,1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Dimensions())
	assert.Len(t, report.Skipped, 1)
}

func TestLoad_abortPolicy(t *testing.T) {
	input := "apple,0.1,0.2\nbad,0.3,oops\ncherry,0.7,0.8\n"
	idx, _, err := NewLoader(nil, WithPolicy(PolicyAbort)).Load(context.Background(), strings.NewReader(input))
	require.Error(t, err)
	assert.Nil(t, idx)
	assert.True(t, errors.Is(err, ErrMalformedRow))

	var rowErr *MalformedRowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 2, rowErr.Line)
	assert.Equal(t, 2, rowErr.Field)
}

func TestLoad_replaceSemantics(t *testing.T) {
	ld := NewLoader(nil)
	ctx := context.Background()
	first, _, err := ld.Load(ctx, strings.NewReader("apple,1,2\nbanana,3,4\n"))
	require.NoError(t, err)
	second, _, err := ld.Load(ctx, strings.NewReader("cherry,5,6\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"cherry"}, second.Vocabulary())
	assert.Equal(t, [][]float64{{5, 6}}, second.Vectors())
	_, ok := second.Vector("apple")
	assert.False(t, ok, "second load must not contain rows from the first")
	assert.Equal(t, 2, first.Len(), "first index is untouched by the second load")

	h := NewHolder(first)
	prev := h.Replace(second)
	assert.Same(t, first, prev)
	assert.Same(t, second, h.Current())
	assert.Equal(t, 1, h.Current().Len())
}

func TestLoad_duplicateTokenKeepsFirstLookup(t *testing.T) {
	idx, _, err := NewLoader(nil).Load(context.Background(), strings.NewReader("a,1\na,2\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	v, _ := idx.Vector("a")
	assert.Equal(t, []float64{1}, v)
}

func TestLoad_contextCancelled(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 5000; i++ {
		b.WriteString("w,1,2\n")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewLoader(nil).Load(ctx, strings.NewReader(b.String()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoader_customDelimiter(t *testing.T) {
	idx, _, err := NewLoader(nil, WithDelimiter(" ")).Load(context.Background(), strings.NewReader("apple 0.1 0.2\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"apple"}, idx.Vocabulary())
}

func TestLoadResource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "glove.csv"), []byte("apple,0.1,0.2\n"), 0600))

	ld := NewLoader(NewResolver(filepath.Join(dir, "missing"), dir))
	idx, report, err := ld.LoadResource(context.Background(), "glove.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, filepath.Join(dir, "glove.csv"), report.Resource)

	_, _, err = ld.LoadResource(context.Background(), "nope.csv")
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestLoadFile_missing(t *testing.T) {
	_, _, err := NewLoader(nil).LoadFile(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    MalformedRowPolicy
		wantErr bool
	}{
		{"", PolicySkip, false},
		{"skip", PolicySkip, false},
		{"ABORT", PolicyAbort, false},
		{"ignore", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestIndex_Fingerprint(t *testing.T) {
	ld := NewLoader(nil)
	ctx := context.Background()
	load := func(data string) *Index {
		idx, _, err := ld.Load(ctx, strings.NewReader(data))
		require.NoError(t, err)
		return idx
	}
	a := load("markets,1,0,0\nrose,0,0,1\n")
	assert.Equal(t, a.Fingerprint(), load("markets,1,0,0\nrose,0,0,1\n").Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), load("markets,0,0,1\nrose,0,0,1\n").Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), load("rose,0,0,1\nmarkets,1,0,0\n").Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
}

func TestIndex_Page(t *testing.T) {
	idx, _, err := NewLoader(nil).Load(context.Background(), strings.NewReader("a,1\nb,2\nc,3\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, idx.Page(1, 5))
	assert.Empty(t, idx.Page(3, 5))
	assert.Empty(t, idx.Page(0, 0))
}
