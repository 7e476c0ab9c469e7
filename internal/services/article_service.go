package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/core"
	"github.com/markdave123-py/inboxpress/internal/models"
)

// ErrAllTopicsFailed is returned when no attempted topic produced an article.
var ErrAllTopicsFailed = errors.New("every topic failed")

const articleStatus = "published"

type ArticleConfig struct {
	ContextChunks   int
	MaxContextChars int
	Model           string
	Temperature     float32
	MaxTokens       int
	AuthorID        string
	Category        string // category name; empty leaves articles uncategorized
}

func (c *ArticleConfig) setDefaults() {
	if c.ContextChunks <= 0 {
		c.ContextChunks = 5
	}
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = 2000
	}
	if c.Model == "" {
		c.Model = "deepseek-chat"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
}

// ArticleService writes one article per unprocessed topic.
type ArticleService struct {
	index    core.DocumentIndex
	embedder core.EmbeddingProvider
	llm      core.LLMProvider
	store    core.ContentStore
	cfg      ArticleConfig
	log      *zap.Logger

	shuffle func([]models.Topic)
	now     func() time.Time
}

func NewArticleService(index core.DocumentIndex, emb core.EmbeddingProvider, llm core.LLMProvider, store core.ContentStore, cfg ArticleConfig, log *zap.Logger) *ArticleService {
	cfg.setDefaults()
	return &ArticleService{
		index:    index,
		embedder: emb,
		llm:      llm,
		store:    store,
		cfg:      cfg,
		log:      log.With(zap.String("component", "articles")),
		shuffle: func(ts []models.Topic) {
			rand.Shuffle(len(ts), func(i, j int) { ts[i], ts[j] = ts[j], ts[i] })
		},
		now: time.Now,
	}
}

// Generate processes at most limit unprocessed topics (all when limit <= 0)
// and returns the number of articles created.
func (s *ArticleService) Generate(ctx context.Context, limit int) (int, error) {
	topics, err := s.store.FetchUnprocessedTopics(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch topics: %w", err)
	}
	if len(topics) == 0 {
		s.log.Info("no unprocessed topics")
		return 0, nil
	}

	s.shuffle(topics)
	if limit > 0 && len(topics) > limit {
		topics = topics[:limit]
	}

	categoryID := s.category(ctx)

	var (
		created  int
		failures int
		lastErr  error
	)
	for _, t := range topics {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		ok, err := s.generateOne(ctx, t, categoryID)
		if err != nil {
			if ctx.Err() != nil {
				return created, ctx.Err()
			}
			failures++
			lastErr = err
			s.log.Warn("article failed", zap.String("topic", t.Name), zap.Error(err))
			continue
		}
		if ok {
			created++
		}
	}

	s.log.Info("articles generated",
		zap.Int("topics", len(topics)),
		zap.Int("created", created),
		zap.Int("failed", failures),
	)
	if failures == len(topics) {
		return 0, fmt.Errorf("%w (%d topics): %w", ErrAllTopicsFailed, failures, lastErr)
	}
	return created, nil
}

// category resolves the configured category id, or nil when unset or unavailable.
func (s *ArticleService) category(ctx context.Context) *string {
	if s.cfg.Category == "" {
		return nil
	}
	id, err := s.store.EnsureCategory(ctx, models.Category{Name: s.cfg.Category, Slug: Slugify(s.cfg.Category)})
	if err != nil {
		s.log.Warn("category unavailable, articles stay uncategorized", zap.String("category", s.cfg.Category), zap.Error(err))
		return nil
	}
	return &id
}

func (s *ArticleService) generateOne(ctx context.Context, t models.Topic, categoryID *string) (bool, error) {
	related, err := s.relatedContext(ctx, t.Name)
	if err != nil {
		return false, err
	}

	content, err := s.llm.Complete(ctx, articlePrompt(t.Name, related), core.CompletionOptions{
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		return false, fmt.Errorf("generate: %w", err)
	}

	slug := Slugify(t.Name)
	if slug == "" {
		slug = "article-" + Slugify(t.ID)
	}
	published := s.now().UTC()
	article := &models.Article{
		Title:       truncateRunes(t.Name, 100),
		Slug:        slug,
		Content:     content,
		CategoryID:  categoryID,
		Status:      articleStatus,
		PublishedAt: &published,
	}
	if s.cfg.AuthorID != "" {
		author := s.cfg.AuthorID
		article.AuthorID = &author
	}

	created, err := s.store.InsertArticle(ctx, article)
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	if !created {
		s.log.Info("article slug exists, skipped", zap.String("slug", slug))
	}

	if err := s.store.MarkTopicProcessed(ctx, t.Name); err != nil {
		return created, fmt.Errorf("mark processed: %w", err)
	}
	return created, nil
}

// relatedContext joins the chunks nearest to the topic, capped in length.
func (s *ArticleService) relatedContext(ctx context.Context, topic string) (string, error) {
	vecs, err := s.embedder.EmbedTexts(ctx, []string{topic})
	if err != nil {
		return "", fmt.Errorf("embed topic: %w", err)
	}
	if len(vecs) != 1 {
		return "", fmt.Errorf("embed topic: got %d vectors", len(vecs))
	}
	chunks, err := s.index.SearchChunks(ctx, vecs[0], s.cfg.ContextChunks)
	if err != nil {
		return "", fmt.Errorf("search chunks: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	return truncateRunes(strings.Join(texts, "\n\n"), s.cfg.MaxContextChars), nil
}

func articlePrompt(topic, related string) string {
	return `
Tu es un expert en gestion du temps. Rédige l'article ci-dessous intégralement en français, même si le contexte est en anglais.
Sujet de l'article : ` + topic + `

À partir du contexte suivant :

` + related + `

Génère un article structuré au format suivant :

---
**Citation inspirante**
Une citation puissante qui introduit le sujet.

**Titre principal (en gras, première lettre en majuscule)**
Un titre percutant.

# **Section 1 : Introduction**
Présente le sujet avec une voix active, claire et directe.

# **Section 2 : Conseils ou techniques**
Utilise une énumération avec émojis (1️⃣, 2️⃣, etc.). Donne des exemples concrets.

# **Section 3 : Cas d'usage ou erreur à éviter**
Sois spécifique, clair et utile.

# **Conclusion**
Synthétise et propose une réflexion ou un appel à l'action.
---

Rédige en Markdown et uniquement en français.
`
}
