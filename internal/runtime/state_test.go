package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven/mocks"
)

// stubPipeline answers every query with a fixed text
type stubPipeline struct {
	mu    sync.Mutex
	calls int
}

func (p *stubPipeline) Retrieve(ctx context.Context, query string, k int) (*domain.RetrievalResult, error) {
	return &domain.RetrievalResult{}, nil
}

func (p *stubPipeline) Answer(ctx context.Context, query string) (*domain.Answer, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return &domain.Answer{Query: query, Text: "Elsewhere"}, nil
}

func (p *stubPipeline) Fingerprint() domain.IndexFingerprint {
	return domain.NewIndexFingerprint("stub", 8)
}

// closeTrackingEmbedding wraps the mock to observe Close
type closeTrackingEmbedding struct {
	*mocks.MockEmbeddingService
	healthErr error
	closed    bool
}

func (e *closeTrackingEmbedding) HealthCheck(ctx context.Context) error { return e.healthErr }
func (e *closeTrackingEmbedding) Close() error {
	e.closed = true
	return nil
}

func TestState_Uninitialised(t *testing.T) {
	s := NewState()

	assert.False(t, s.Ready())
	_, ok := s.Pipeline()
	assert.False(t, ok)

	_, err := s.Answer(context.Background(), "What is the capital of Wonderland?")
	assert.ErrorIs(t, err, domain.ErrPipelineNotInitialized)

	_, err = s.Retrieve(context.Background(), "q", 3)
	assert.ErrorIs(t, err, domain.ErrPipelineNotInitialized)

	assert.Equal(t, domain.IndexFingerprint{}, s.Fingerprint())
}

func TestState_UninitialisedMakesNoRemoteCall(t *testing.T) {
	s := NewState()
	llm := mocks.NewMockLLMService("x")
	emb := mocks.NewMockEmbeddingService()
	require.NoError(t, s.ValidateAndSetLLM(context.Background(), llm))
	require.NoError(t, s.ValidateAndSetEmbedding(context.Background(), emb))

	_, err := s.Answer(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrPipelineNotInitialized)
	assert.Equal(t, 0, llm.Calls())
	assert.Equal(t, 0, emb.Calls())
}

func TestState_SetPipeline(t *testing.T) {
	s := NewState()
	p := &stubPipeline{}

	require.NoError(t, s.SetPipeline(p))
	assert.True(t, s.Ready())

	answer, err := s.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "Elsewhere", answer.Text)
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, "stub", s.Fingerprint().EmbeddingModel)

	_, err = s.Retrieve(context.Background(), "q", 3)
	assert.NoError(t, err)
}

func TestState_SetPipelineOnce(t *testing.T) {
	s := NewState()

	assert.ErrorIs(t, s.SetPipeline(nil), domain.ErrInvalidInput)
	require.NoError(t, s.SetPipeline(&stubPipeline{}))
	assert.ErrorIs(t, s.SetPipeline(&stubPipeline{}), domain.ErrInvalidInput)
}

func TestState_ConcurrentPublish(t *testing.T) {
	s := NewState()
	p := &stubPipeline{}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Answer(context.Background(), "q")
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrPipelineNotInitialized)
			}
		}()
	}
	require.NoError(t, s.SetPipeline(p))
	wg.Wait()

	assert.True(t, s.Ready())
}

func TestState_ValidateAndSetEmbedding(t *testing.T) {
	s := NewState()

	assert.ErrorIs(t, s.ValidateAndSetEmbedding(context.Background(), nil), domain.ErrInvalidInput)

	bad := &closeTrackingEmbedding{MockEmbeddingService: mocks.NewMockEmbeddingService(), healthErr: errors.New("down")}
	err := s.ValidateAndSetEmbedding(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.True(t, bad.closed)
	assert.Nil(t, s.EmbeddingService())

	first := &closeTrackingEmbedding{MockEmbeddingService: mocks.NewMockEmbeddingService()}
	second := &closeTrackingEmbedding{MockEmbeddingService: mocks.NewMockEmbeddingService()}
	require.NoError(t, s.ValidateAndSetEmbedding(context.Background(), first))
	require.NoError(t, s.ValidateAndSetEmbedding(context.Background(), second))
	assert.True(t, first.closed, "replaced service is closed")
	assert.Same(t, second, s.EmbeddingService())
}

func TestState_ValidateAndSetLLM(t *testing.T) {
	s := NewState()

	bad := mocks.NewMockLLMService("")
	bad.PingFn = func() error { return errors.New("401") }
	assert.ErrorIs(t, s.ValidateAndSetLLM(context.Background(), bad), domain.ErrServiceUnavailable)
	assert.Nil(t, s.LLMService())

	good := mocks.NewMockLLMService("")
	require.NoError(t, s.ValidateAndSetLLM(context.Background(), good))
	assert.Same(t, good, s.LLMService())
}

func TestState_Close(t *testing.T) {
	s := NewState()
	emb := &closeTrackingEmbedding{MockEmbeddingService: mocks.NewMockEmbeddingService()}
	require.NoError(t, s.ValidateAndSetEmbedding(context.Background(), emb))
	require.NoError(t, s.ValidateAndSetLLM(context.Background(), mocks.NewMockLLMService("")))
	require.NoError(t, s.SetPipeline(&stubPipeline{}))

	require.NoError(t, s.Close())
	assert.True(t, emb.closed)
	assert.Nil(t, s.EmbeddingService())
	assert.Nil(t, s.LLMService())
	assert.True(t, s.Ready(), "pipeline survives Close")
}
