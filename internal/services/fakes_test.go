package services

import (
	"context"
	"sync"

	"github.com/markdave123-py/inboxpress/internal/core"
	"github.com/markdave123-py/inboxpress/internal/models"
)

type fakeIndex struct {
	chunks    map[string][]models.Chunk
	fetchErr  error
	searchHit []models.Chunk
	searchK   int
}

func (f *fakeIndex) AddChunks(context.Context, []models.Chunk) error { return nil }
func (f *fakeIndex) GetAll(context.Context) (*models.IndexSnapshot, error) {
	return &models.IndexSnapshot{}, nil
}
func (f *fakeIndex) GetChunksBySource(_ context.Context, source string) ([]models.Chunk, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.chunks[source], nil
}
func (f *fakeIndex) HasSource(_ context.Context, source string) (bool, error) {
	return len(f.chunks[source]) > 0, nil
}
func (f *fakeIndex) SearchChunks(_ context.Context, _ []float32, k int) ([]models.Chunk, error) {
	f.searchK = k
	return f.searchHit, nil
}
func (f *fakeIndex) Close() error { return nil }

// scriptedLLM answers each call from replies in order; a nil error with an
// empty reply list echoes a fixed answer.
type scriptedLLM struct {
	mu      sync.Mutex
	prompts []string
	opts    []core.CompletionOptions
	replies []reply
}

type reply struct {
	text string
	err  error
}

func (l *scriptedLLM) Complete(_ context.Context, prompt string, opts core.CompletionOptions) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, prompt)
	l.opts = append(l.opts, opts)
	if len(l.replies) == 0 {
		return "# Article\n\nContenu.", nil
	}
	r := l.replies[0]
	l.replies = l.replies[1:]
	return r.text, r.err
}

type fakeStore struct {
	mu sync.Mutex

	topics       []models.Topic
	insertErr    error
	fetched      []models.Topic
	fetchErr     error
	processed    []string
	markErr      error
	articles     []models.Article
	conflicts    map[string]bool
	articleErr   error
	categoryID   string
	categoryErr  error
	categoryReqs []models.Category
}

func (s *fakeStore) InsertTopic(_ context.Context, t models.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.topics = append(s.topics, t)
	return nil
}

func (s *fakeStore) FetchUnprocessedTopics(context.Context) ([]models.Topic, error) {
	return s.fetched, s.fetchErr
}

func (s *fakeStore) MarkTopicProcessed(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	s.processed = append(s.processed, name)
	return nil
}

func (s *fakeStore) InsertArticle(_ context.Context, a *models.Article) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.articleErr != nil {
		return false, s.articleErr
	}
	if s.conflicts[a.Slug] {
		return false, nil
	}
	s.articles = append(s.articles, *a)
	return true, nil
}

func (s *fakeStore) EnsureCategory(_ context.Context, cat models.Category) (string, error) {
	s.categoryReqs = append(s.categoryReqs, cat)
	return s.categoryID, s.categoryErr
}

type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}
