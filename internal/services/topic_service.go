package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/core"
	"github.com/markdave123-py/inboxpress/internal/models"
)

// ErrNoCompletion is returned when every batch completion of a source failed.
var ErrNoCompletion = errors.New("no batch completed")

type TopicConfig struct {
	BatchSize      int
	MaxBatches     int
	MaxPromptChars int
	Model          string
	Temperature    float32
	MaxTokens      int
	UserID         string // empty means a fresh id per run
}

func (c *TopicConfig) setDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 8
	}
	if c.MaxBatches <= 0 {
		c.MaxBatches = 5
	}
	if c.MaxPromptChars <= 0 {
		c.MaxPromptChars = 4000
	}
	if c.Model == "" {
		c.Model = "deepseek-chat"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 300
	}
}

// TopicService derives keyword topics from the indexed chunks of a source.
type TopicService struct {
	index core.DocumentIndex
	llm   core.LLMProvider
	store core.ContentStore
	cfg   TopicConfig
	log   *zap.Logger
}

func NewTopicService(index core.DocumentIndex, llm core.LLMProvider, store core.ContentStore, cfg TopicConfig, log *zap.Logger) *TopicService {
	cfg.setDefaults()
	return &TopicService{
		index: index,
		llm:   llm,
		store: store,
		cfg:   cfg,
		log:   log.With(zap.String("component", "topics")),
	}
}

// Extract builds topics for source and stores them. It returns the number
// of topics inserted. A source without chunks yields zero topics.
func (s *TopicService) Extract(ctx context.Context, source string) (int, error) {
	chunks, err := s.index.GetChunksBySource(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("fetch chunks for %s: %w", source, err)
	}
	if len(chunks) == 0 {
		s.log.Warn("no chunks found for source", zap.String("source", source))
		return 0, nil
	}

	var (
		topics   []string
		attempts int
		failures int
		lastErr  error
	)
	for b := 0; b < s.cfg.MaxBatches && b*s.cfg.BatchSize < len(chunks); b++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		end := min((b+1)*s.cfg.BatchSize, len(chunks))

		cleaned := make([]string, 0, end-b*s.cfg.BatchSize)
		for _, ch := range chunks[b*s.cfg.BatchSize : end] {
			cleaned = append(cleaned, cleanChunkText(ch.Text))
		}
		prompt := topicPrompt(truncateRunes(strings.Join(cleaned, "\n"), s.cfg.MaxPromptChars))

		attempts++
		result, err := s.llm.Complete(ctx, prompt, core.CompletionOptions{
			Model:       s.cfg.Model,
			Temperature: s.cfg.Temperature,
			MaxTokens:   s.cfg.MaxTokens,
		})
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			failures++
			lastErr = err
			s.log.Warn("topic batch failed", zap.String("source", source), zap.Int("batch", b+1), zap.Error(err))
			continue
		}
		found := parseTopics(result)
		s.log.Debug("topic batch done", zap.Int("batch", b+1), zap.Int("topics", len(found)))
		topics = append(topics, found...)
	}
	if failures == attempts {
		return 0, fmt.Errorf("%w for %s: %w", ErrNoCompletion, source, lastErr)
	}

	topics = dedupe(topics)
	userID := s.cfg.UserID
	if userID == "" {
		userID = uuid.NewString()
	}

	inserted := 0
	for _, name := range topics {
		err := s.store.InsertTopic(ctx, models.Topic{
			ID:     uuid.NewString(),
			Name:   name,
			Label:  name,
			Source: source,
			UserID: userID,
		})
		if err != nil {
			lastErr = err
			s.log.Warn("topic insert failed", zap.String("topic", name), zap.Error(err))
			continue
		}
		inserted++
	}
	if len(topics) > 0 && inserted == 0 {
		return 0, fmt.Errorf("insert topics for %s: %w", source, lastErr)
	}

	s.log.Info("topics extracted", zap.String("source", source), zap.Int("found", len(topics)), zap.Int("inserted", inserted))
	return inserted, nil
}

var (
	boilerplateLineRe = regexp.MustCompile(`(?i)^(page|chapitre|table des matières|sommaire|contents|index|copyright|isbn|\d+)$`)
	rejectedTopicRe   = regexp.MustCompile(`(?i)^(page|chapitre|\d+)$`)
)

// cleanChunkText drops pagination, headings and other short noise lines.
func cleanChunkText(text string) string {
	lines := strings.Split(text, "\n")
	var kept []string
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if boilerplateLineRe.MatchString(l) || utf8.RuneCountInString(l) < 3 {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func topicPrompt(text string) string {
	return "Voici un extrait d'un livre. Donne une **liste de 10 à 30 topics importants**, " +
		"chaque topic sur une seule ligne. Pas de phrases longues. Pas d'exemples. Pas de détails. " +
		"Seulement des mots-clés ou concepts brefs (1 à 6 mots).\n\n" +
		"N'inclus pas la pagination, les numéros de page, les titres de chapitre, ou tout élément technique. " +
		"Ne retiens que les vrais concepts ou idées du livre.\n\n" +
		"---\n" + text + "\n---\n\nListe :\n"
}

// parseTopics reads one topic per line from the text after the last "Liste :".
func parseTopics(result string) []string {
	if i := strings.LastIndex(result, "Liste :"); i >= 0 {
		result = result[i+len("Liste :"):]
	}

	var out []string
	for _, line := range strings.Split(strings.TrimSpace(result), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		t := strings.TrimSpace(strings.Trim(line, "-•*–—1234567890. "))
		n := utf8.RuneCountInString(t)
		if n < 3 || n > 60 || rejectedTopicRe.MatchString(t) || !strings.Contains(t, " ") {
			continue
		}
		if l := strings.ToLower(t); l == "liste" || l == "introduction" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
