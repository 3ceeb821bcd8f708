package ai

import (
	"context"
	"math"
	"testing"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestHashingEmbedding_Deterministic(t *testing.T) {
	a := NewHashingEmbedding(0)
	b := NewHashingEmbedding(0)

	va, err := a.EmbedQuery(context.Background(), "Who is the White Rabbit?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vb, _ := b.EmbedQuery(context.Background(), "Who is the White Rabbit?")

	if len(va) != DefaultHashingDimensions {
		t.Fatalf("expected %d dimensions, got %d", DefaultHashingDimensions, len(va))
	}
	for i := range va {
		if va[i] != vb[i] {
			t.Fatalf("vectors differ at %d", i)
		}
	}
}

func TestHashingEmbedding_UnitLength(t *testing.T) {
	h := NewHashingEmbedding(64)

	v, _ := h.EmbedQuery(context.Background(), "rabbit hole tea party")
	if norm := math.Sqrt(cosine(v, v)); math.Abs(norm-1) > 1e-5 {
		t.Errorf("expected unit vector, got norm %f", norm)
	}
}

func TestHashingEmbedding_StopwordsOnlyIsZero(t *testing.T) {
	h := NewHashingEmbedding(32)

	v, _ := h.EmbedQuery(context.Background(), "the and of to")
	for i, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, got %f at %d", x, i)
		}
	}
}

func TestHashingEmbedding_SimilarTextsScoreHigher(t *testing.T) {
	h := NewHashingEmbedding(0)
	ctx := context.Background()

	vecs, err := h.Embed(ctx, []string{
		"Alice followed the White Rabbit down the rabbit hole.",
		"The Mad Hatter hosted a tea party with the March Hare.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	query, _ := h.EmbedQuery(ctx, "Who did Alice follow down the rabbit hole?")

	if cosine(query, vecs[0]) <= cosine(query, vecs[1]) {
		t.Errorf("expected rabbit passage to score higher: %f vs %f",
			cosine(query, vecs[0]), cosine(query, vecs[1]))
	}
}

func TestHashingEmbedding_CaseInsensitive(t *testing.T) {
	h := NewHashingEmbedding(0)

	a, _ := h.EmbedQuery(context.Background(), "White Rabbit")
	b, _ := h.EmbedQuery(context.Background(), "white rabbit")
	if cosine(a, b) < 0.9999 {
		t.Errorf("expected identical vectors, cosine %f", cosine(a, b))
	}
}

func TestHashingEmbedding_Metadata(t *testing.T) {
	h := NewHashingEmbedding(128)
	if h.Model() != "hashing-bow-128" {
		t.Errorf("unexpected model %s", h.Model())
	}
	if h.Dimensions() != 128 {
		t.Errorf("unexpected dimensions %d", h.Dimensions())
	}
	if err := h.HealthCheck(context.Background()); err != nil {
		t.Errorf("unexpected health error: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func TestHashingEmbedding_CancelledContext(t *testing.T) {
	h := NewHashingEmbedding(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.Embed(ctx, []string{"x"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
