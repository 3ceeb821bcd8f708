package domain

import (
	"errors"
	"testing"
)

func TestNewIndexFingerprint(t *testing.T) {
	fp := NewIndexFingerprint("hashing-bow", 384)

	if fp.Format != IndexFormat {
		t.Errorf("expected format %s, got %s", IndexFormat, fp.Format)
	}
	if !fp.Normalized {
		t.Error("expected normalized fingerprint")
	}
}

func TestIndexFingerprint_CheckCompatible(t *testing.T) {
	fp := NewIndexFingerprint("text-embedding-3-small", 1536)

	tests := []struct {
		name       string
		model      string
		dimensions int
		wantErr    bool
	}{
		{"same space", "text-embedding-3-small", 1536, false},
		{"different dimensions", "text-embedding-3-small", 384, true},
		{"different model", "text-embedding-ada-002", 1536, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fp.CheckCompatible(tt.model, tt.dimensions)
			if tt.wantErr {
				if !errors.Is(err, ErrEmbeddingMismatch) {
					t.Errorf("expected ErrEmbeddingMismatch, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
