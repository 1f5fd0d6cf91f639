package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	rec, err := Extract(NewDefaultTemplate(), minimalArticle)
	require.NoError(t, err)
	assert.Equal(t, "Breaking News", rec.Title)
	assert.Equal(t, "Markets rose today.", rec.Content)
	assert.Equal(t, "Training", rec.DataType)
	assert.Equal(t, "Positive", rec.Label)
}

func TestExtract_MissingField(t *testing.T) {
	doc := `<title>Only a title</title><body><p>Body.</p></body>`
	rec, err := Extract(NewDefaultTemplate(), doc)
	require.Error(t, err)
	assert.Nil(t, rec)

	var fnf *FieldNotFoundError
	require.True(t, errors.As(err, &fnf))
	assert.Equal(t, FieldDataType, fnf.Field)
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()

	t.Run("crlf and missing final newline", func(t *testing.T) {
		path := filepath.Join(dir, "crlf.htm")
		require.NoError(t, os.WriteFile(path, []byte("<title>A</title>\r\n<p>B</p>"), 0644))
		text, err := ReadDocument(path)
		require.NoError(t, err)
		assert.Equal(t, "<title>A</title>\n<p>B</p>\n", text)
	})

	t.Run("invalid utf8 replaced", func(t *testing.T) {
		path := filepath.Join(dir, "bad.htm")
		require.NoError(t, os.WriteFile(path, []byte("caf\xe9\n"), 0644))
		text, err := ReadDocument(path)
		require.NoError(t, err)
		assert.Equal(t, "caf\ufffd\n", text)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.htm")
		require.NoError(t, os.WriteFile(path, nil, 0644))
		text, err := ReadDocument(path)
		require.NoError(t, err)
		assert.Equal(t, "", text)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadDocument(filepath.Join(dir, "nope.htm"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "a b c", collapseSpace("  a \n\t b   c "))
	assert.Equal(t, "", collapseSpace(" \n "))
}
