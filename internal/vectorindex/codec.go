package vectorindex

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/custodia-labs/faqbot/internal/core/domain"
)

// envelope is the persisted layout. Field order and sorted metadata keys
// make the encoding byte-for-byte reproducible.
type envelope struct {
	Fingerprint domain.IndexFingerprint `json:"fingerprint"`
	Count       int                     `json:"count"`
	Entries     []storedEntry           `json:"entries"`
}

type storedEntry struct {
	Chunk  *domain.Chunk `json:"chunk"`
	Vector string        `json:"vector"` // base64 little-endian float32
}

// Marshal serializes the index. Equal indexes always produce equal bytes.
func Marshal(idx *Index) ([]byte, error) {
	env := envelope{
		Fingerprint: idx.fingerprint,
		Count:       idx.Len(),
		Entries:     make([]storedEntry, idx.Len()),
	}
	dims := idx.Dimensions()
	for i, c := range idx.chunks {
		env.Entries[i] = storedEntry{
			Chunk:  c,
			Vector: encodeVector(idx.vectors[i*dims : (i+1)*dims]),
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a blob produced by Marshal.
// Any structural problem, trailing bytes included, is reported as ErrIndexCorrupt.
func Unmarshal(data []byte) (*Index, error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexCorrupt, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after index at byte %d", domain.ErrIndexCorrupt, dec.InputOffset())
	}

	fp := env.Fingerprint
	if fp.Format != domain.IndexFormat {
		return nil, fmt.Errorf("%w: unsupported format %q", domain.ErrIndexCorrupt, fp.Format)
	}
	if fp.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %d", domain.ErrIndexCorrupt, fp.Dimensions)
	}
	if env.Count != len(env.Entries) {
		return nil, fmt.Errorf("%w: header says %d entries, found %d", domain.ErrIndexCorrupt, env.Count, len(env.Entries))
	}
	if len(env.Entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", domain.ErrIndexCorrupt)
	}

	idx := &Index{
		fingerprint: fp,
		chunks:      make([]*domain.Chunk, len(env.Entries)),
		vectors:     make([]float32, 0, len(env.Entries)*fp.Dimensions),
	}
	for i, e := range env.Entries {
		if e.Chunk == nil {
			return nil, fmt.Errorf("%w: entry %d has no chunk", domain.ErrIndexCorrupt, i)
		}
		vec, err := decodeVector(e.Vector, fp.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", domain.ErrIndexCorrupt, i, err)
		}
		idx.chunks[i] = e.Chunk
		idx.vectors = append(idx.vectors, vec...)
	}
	return idx, nil
}

func encodeVector(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func decodeVector(s string, dims int) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(buf) != 4*dims {
		return nil, fmt.Errorf("vector has %d bytes, want %d", len(buf), 4*dims)
	}
	v := make([]float32, dims)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
