package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
)

const (
	vectorHeaderSize = 4
	vectorValueSize  = 4
	indexHeaderSize  = 8
)

// ErrDimensionMismatch is returned when a vector does not match the index
// dimension.
var ErrDimensionMismatch = errors.New("memory: vector dimension mismatch")

// EncodeVector encodes a float32 vector as
// [4-byte little-endian dimension][N x 4-byte little-endian float32].
func EncodeVector(vector []float32) ([]byte, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("encode vector: empty vector")
	}
	blob := make([]byte, vectorHeaderSize+len(vector)*vectorValueSize)
	binary.LittleEndian.PutUint32(blob[:vectorHeaderSize], uint32(len(vector)))
	off := vectorHeaderSize
	for i, v := range vector {
		if !isFinite(v) {
			return nil, fmt.Errorf("encode vector: invalid value at index %d", i)
		}
		binary.LittleEndian.PutUint32(blob[off:off+vectorValueSize], math.Float32bits(v))
		off += vectorValueSize
	}
	return blob, nil
}

// DecodeVector decodes a blob produced by EncodeVector.
func DecodeVector(blob []byte) ([]float32, error) {
	if len(blob) < vectorHeaderSize {
		return nil, fmt.Errorf("decode vector: invalid blob length: %d", len(blob))
	}
	dim := int(binary.LittleEndian.Uint32(blob[:vectorHeaderSize]))
	if dim <= 0 {
		return nil, fmt.Errorf("decode vector: invalid dimension: %d", dim)
	}
	if want := vectorHeaderSize + dim*vectorValueSize; len(blob) != want {
		return nil, fmt.Errorf("decode vector: dimension mismatch: dim=%d payload=%d", dim, len(blob)-vectorHeaderSize)
	}
	out := make([]float32, dim)
	off := vectorHeaderSize
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[off : off+vectorValueSize]))
		off += vectorValueSize
	}
	return out, nil
}

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Hit is one nearest-neighbour result: the position of the vector in the
// index and its Euclidean distance to the query.
type Hit struct {
	Pos      int
	Distance float64
}

// FlatIndex is an exact L2 nearest-neighbour index that scans every vector.
// Position i holds the i-th vector added. The zero value is an empty index
// whose dimension is fixed by the first Add.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// Dim is the index dimension, or 0 while empty.
func (x *FlatIndex) Dim() int { return x.dim }

// Len is the number of vectors in the index.
func (x *FlatIndex) Len() int { return len(x.vectors) }

// Add appends vec at position Len().
func (x *FlatIndex) Add(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("memory: index add: empty vector")
	}
	if x.dim != 0 && len(vec) != x.dim {
		return fmt.Errorf("%w: index=%d vector=%d", ErrDimensionMismatch, x.dim, len(vec))
	}
	if x.dim == 0 {
		x.dim = len(vec)
	}
	v := make([]float32, len(vec))
	copy(v, vec)
	x.vectors = append(x.vectors, v)
	return nil
}

// Clone returns a copy that can be extended without touching x.
func (x *FlatIndex) Clone() *FlatIndex {
	c := &FlatIndex{dim: x.dim, vectors: make([][]float32, len(x.vectors))}
	copy(c.vectors, x.vectors)
	return c
}

// Search returns up to k hits ordered by ascending distance to query. An
// empty index, a non-positive k, or a query of the wrong dimension yields no
// hits.
func (x *FlatIndex) Search(query []float32, k int) []Hit {
	if k <= 0 || len(x.vectors) == 0 || len(query) != x.dim {
		return nil
	}
	hits := make([]Hit, len(x.vectors))
	for i, v := range x.vectors {
		var sum float64
		for j := range v {
			d := float64(v[j]) - float64(query[j])
			sum += d * d
		}
		hits[i] = Hit{Pos: i, Distance: math.Sqrt(sum)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

// MarshalBinary encodes the index as
// [4-byte count][4-byte dim][count x dim little-endian float32].
func (x *FlatIndex) MarshalBinary() ([]byte, error) {
	blob := make([]byte, indexHeaderSize+len(x.vectors)*x.dim*vectorValueSize)
	binary.LittleEndian.PutUint32(blob[0:4], uint32(len(x.vectors)))
	binary.LittleEndian.PutUint32(blob[4:8], uint32(x.dim))
	off := indexHeaderSize
	for _, v := range x.vectors {
		for _, f := range v {
			binary.LittleEndian.PutUint32(blob[off:off+vectorValueSize], math.Float32bits(f))
			off += vectorValueSize
		}
	}
	return blob, nil
}

// UnmarshalBinary replaces x with the index encoded in blob.
func (x *FlatIndex) UnmarshalBinary(blob []byte) error {
	if len(blob) < indexHeaderSize {
		return fmt.Errorf("memory: index decode: short blob (%d bytes)", len(blob))
	}
	count := int(binary.LittleEndian.Uint32(blob[0:4]))
	dim := int(binary.LittleEndian.Uint32(blob[4:8]))
	if want := indexHeaderSize + count*dim*vectorValueSize; len(blob) != want {
		return fmt.Errorf("memory: index decode: got %d bytes, want %d", len(blob), want)
	}
	if count > 0 && dim == 0 {
		return fmt.Errorf("memory: index decode: %d vectors with zero dimension", count)
	}
	vectors := make([][]float32, count)
	off := indexHeaderSize
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(blob[off : off+vectorValueSize]))
			off += vectorValueSize
		}
		vectors[i] = v
	}
	if count == 0 {
		dim = 0
	}
	x.dim, x.vectors = dim, vectors
	return nil
}
