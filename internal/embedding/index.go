// Package embedding loads pretrained word-embedding tables into an explicit,
// owned in-memory index and pools word vectors into text embeddings.
package embedding

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"sync/atomic"
)

// Index is a loaded embedding table: a vocabulary list and a vector list of
// identical length, where position i in each refers to the same source row.
// An Index is never mutated after the loader returns it.
type Index struct {
	vocabulary []string
	vectors    [][]float64
	positions  map[string]int
	dimensions int

	fingerprintOnce sync.Once
	fingerprint     string
}

// newIndex returns an empty index ready for appends during a load.
func newIndex(capacity int) *Index {
	return &Index{
		vocabulary: make([]string, 0, capacity),
		vectors:    make([][]float64, 0, capacity),
		positions:  make(map[string]int, capacity),
	}
}

// append adds one row. The first row fixes the dimensionality.
// A repeated token keeps its first position for lookups but still occupies
// its own row so both lists stay aligned with the source.
func (idx *Index) append(word string, vec []float64) {
	if len(idx.vocabulary) == 0 {
		idx.dimensions = len(vec)
	}
	if _, ok := idx.positions[word]; !ok {
		idx.positions[word] = len(idx.vocabulary)
	}
	idx.vocabulary = append(idx.vocabulary, word)
	idx.vectors = append(idx.vectors, vec)
}

// Len returns the number of rows in the index.
func (idx *Index) Len() int {
	return len(idx.vocabulary)
}

// Dimensions returns the vector length d, or 0 for an empty index.
func (idx *Index) Dimensions() int {
	return idx.dimensions
}

// Vocabulary returns a snapshot of the vocabulary list in row order.
func (idx *Index) Vocabulary() []string {
	out := make([]string, len(idx.vocabulary))
	copy(out, idx.vocabulary)
	return out
}

// Vectors returns a snapshot of the vector list in row order.
func (idx *Index) Vectors() [][]float64 {
	out := make([][]float64, len(idx.vectors))
	for i, v := range idx.vectors {
		out[i] = append([]float64(nil), v...)
	}
	return out
}

// Word returns the token at row i.
func (idx *Index) Word(i int) (string, bool) {
	if i < 0 || i >= len(idx.vocabulary) {
		return "", false
	}
	return idx.vocabulary[i], true
}

// Position returns the row of word, if present.
func (idx *Index) Position(word string) (int, bool) {
	i, ok := idx.positions[word]
	return i, ok
}

// Vector returns a copy of the vector for word, if present.
func (idx *Index) Vector(word string) ([]float64, bool) {
	i, ok := idx.positions[word]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), idx.vectors[i]...), true
}

// Fingerprint returns a hex digest of the vocabulary and vectors in row order.
// Two tables with the same rows share a fingerprint.
func (idx *Index) Fingerprint() string {
	idx.fingerprintOnce.Do(func() {
		h := sha256.New()
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(idx.dimensions))
		h.Write(buf[:])
		for i, word := range idx.vocabulary {
			binary.LittleEndian.PutUint64(buf[:], uint64(len(word)))
			h.Write(buf[:])
			h.Write([]byte(word))
			for _, v := range idx.vectors[i] {
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
				h.Write(buf[:])
			}
		}
		idx.fingerprint = hex.EncodeToString(h.Sum(nil))
	})
	return idx.fingerprint
}

// Page returns up to limit vocabulary entries starting at offset.
func (idx *Index) Page(offset, limit int) []string {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(idx.vocabulary) || limit <= 0 {
		return []string{}
	}
	end := offset + limit
	if end > len(idx.vocabulary) {
		end = len(idx.vocabulary)
	}
	return append([]string(nil), idx.vocabulary[offset:end]...)
}

// Holder publishes the current Index to concurrent readers. Replace swaps in a
// fully built index in one step, so readers see either the old or the new
// table, never a partial one.
type Holder struct {
	current atomic.Pointer[Index]
}

// NewHolder returns a holder publishing idx (which may be nil).
func NewHolder(idx *Index) *Holder {
	h := &Holder{}
	if idx != nil {
		h.current.Store(idx)
	}
	return h
}

// Current returns the published index, or nil if nothing was loaded.
func (h *Holder) Current() *Index {
	return h.current.Load()
}

// Replace publishes idx and returns the previous index.
func (h *Holder) Replace(idx *Index) *Index {
	return h.current.Swap(idx)
}
