package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/models"
)

func newTestArticleService(idx *fakeIndex, emb *fakeEmbedder, llm *scriptedLLM, store *fakeStore, cfg ArticleConfig) *ArticleService {
	s := NewArticleService(idx, emb, llm, store, cfg, zap.NewNop())
	s.shuffle = func([]models.Topic) {}
	s.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return s
}

func topics(names ...string) []models.Topic {
	out := make([]models.Topic, len(names))
	for i, n := range names {
		out[i] = models.Topic{ID: n, Name: n}
	}
	return out
}

func TestArticleService_Generate(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{searchHit: []models.Chunk{{Text: "Planifier la semaine le dimanche."}, {Text: "Bloquer des créneaux."}}}
	llm := &scriptedLLM{replies: []reply{{text: "# Gérer son temps\n\nContenu."}}}
	store := &fakeStore{fetched: topics("Gestion du temps")}

	s := newTestArticleService(idx, &fakeEmbedder{}, llm, store, ArticleConfig{AuthorID: "author-1"})
	n, err := s.Generate(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, 5, idx.searchK)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Planifier la semaine le dimanche.\n\nBloquer des créneaux.")
	assert.Contains(t, llm.prompts[0], "Gestion du temps")
	assert.InDelta(t, 0.7, llm.opts[0].Temperature, 1e-6)
	assert.Equal(t, 1024, llm.opts[0].MaxTokens)

	require.Len(t, store.articles, 1)
	a := store.articles[0]
	assert.Equal(t, "Gestion du temps", a.Title)
	assert.Equal(t, "gestion-du-temps", a.Slug)
	assert.Equal(t, "published", a.Status)
	assert.Equal(t, "# Gérer son temps\n\nContenu.", a.Content)
	require.NotNil(t, a.AuthorID)
	assert.Equal(t, "author-1", *a.AuthorID)
	assert.Nil(t, a.CategoryID)
	require.NotNil(t, a.PublishedAt)
	assert.Equal(t, 2025, a.PublishedAt.Year())

	assert.Equal(t, []string{"Gestion du temps"}, store.processed)
}

func TestArticleService_RespectsLimit(t *testing.T) {
	t.Parallel()
	store := &fakeStore{fetched: topics("sujet un", "sujet deux", "sujet trois")}
	llm := &scriptedLLM{}

	n, err := newTestArticleService(&fakeIndex{}, &fakeEmbedder{}, llm, store, ArticleConfig{}).Generate(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, llm.prompts, 2)
	assert.Equal(t, []string{"sujet un", "sujet deux"}, store.processed)
}

func TestArticleService_SlugConflictStillMarksProcessed(t *testing.T) {
	t.Parallel()
	store := &fakeStore{fetched: topics("Gestion du temps"), conflicts: map[string]bool{"gestion-du-temps": true}}

	n, err := newTestArticleService(&fakeIndex{}, &fakeEmbedder{}, &scriptedLLM{}, store, ArticleConfig{}).Generate(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.articles)
	assert.Equal(t, []string{"Gestion du temps"}, store.processed)
}

func TestArticleService_Category(t *testing.T) {
	t.Parallel()
	store := &fakeStore{fetched: topics("Gestion du temps"), categoryID: "cat-9"}

	_, err := newTestArticleService(&fakeIndex{}, &fakeEmbedder{}, &scriptedLLM{}, store, ArticleConfig{Category: "Productivité"}).
		Generate(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, store.categoryReqs, 1)
	assert.Equal(t, models.Category{Name: "Productivité", Slug: "productivite"}, store.categoryReqs[0])
	require.NotNil(t, store.articles[0].CategoryID)
	assert.Equal(t, "cat-9", *store.articles[0].CategoryID)
}

func TestArticleService_Failures(t *testing.T) {
	t.Parallel()

	t.Run("fetch", func(t *testing.T) {
		store := &fakeStore{fetchErr: errors.New("401")}
		_, err := newTestArticleService(&fakeIndex{}, &fakeEmbedder{}, &scriptedLLM{}, store, ArticleConfig{}).Generate(context.Background(), 0)
		require.ErrorContains(t, err, "fetch topics")
	})

	t.Run("no topics", func(t *testing.T) {
		n, err := newTestArticleService(&fakeIndex{}, &fakeEmbedder{}, &scriptedLLM{}, &fakeStore{}, ArticleConfig{}).Generate(context.Background(), 0)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("partial failure", func(t *testing.T) {
		store := &fakeStore{fetched: topics("sujet un", "sujet deux")}
		llm := &scriptedLLM{replies: []reply{{err: errors.New("timeout")}, {text: "ok"}}}
		n, err := newTestArticleService(&fakeIndex{}, &fakeEmbedder{}, llm, store, ArticleConfig{}).Generate(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{"sujet deux"}, store.processed)
	})

	t.Run("every topic fails", func(t *testing.T) {
		store := &fakeStore{fetched: topics("sujet un", "sujet deux")}
		emb := &fakeEmbedder{err: errors.New("quota")}
		_, err := newTestArticleService(&fakeIndex{}, emb, &scriptedLLM{}, store, ArticleConfig{}).Generate(context.Background(), 0)
		require.ErrorIs(t, err, ErrAllTopicsFailed)
		assert.Empty(t, store.processed)
	})
}
