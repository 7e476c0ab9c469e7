package contentstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/core"
	"github.com/markdave123-py/inboxpress/internal/models"
)

const (
	reqTimeout    = 10 * time.Second
	maxRetryCount = 2
	retryDelay    = 200 * time.Millisecond

	topicsPath     = "/rest/v1/topics"
	postsPath      = "/rest/v1/blog_posts"
	categoriesPath = "/rest/v1/blog_categories"
)

// ErrInvalidRecord marks a record rejected by schema validation.
var ErrInvalidRecord = errors.New("invalid record")

// StatusError is an unexpected HTTP status from the store.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("content store %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// SupabaseClient is the ContentStore on top of the Supabase REST (PostgREST) API.
type SupabaseClient struct {
	*resty.Client
	validate *validator.Validate
	log      *zap.Logger
}

func NewSupabaseClient(baseURL, apiKey string, log *zap.Logger) (*SupabaseClient, error) {
	if baseURL == "" || apiKey == "" {
		return nil, errors.New("content store: SUPABASE_URL and SUPABASE_KEY are required")
	}
	r := resty.New().
		SetLogger(log.Sugar()).
		SetBaseURL(baseURL).
		SetTimeout(reqTimeout).
		SetRetryCount(maxRetryCount).
		SetRetryWaitTime(retryDelay).
		SetHeader("apikey", apiKey).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")

	return &SupabaseClient{
		Client:   r,
		validate: validator.New(),
		log:      log.With(zap.String("component", "contentstore")),
	}, nil
}

func (c *SupabaseClient) InsertTopic(ctx context.Context, topic models.Topic) error {
	if err := c.validate.Struct(topic); err != nil {
		return fmt.Errorf("%w: topic %q: %v", ErrInvalidRecord, topic.Name, err)
	}
	resp, err := c.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(topic).
		Post(topicsPath)
	if err != nil {
		return fmt.Errorf("insert topic: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusConflict:
		c.log.Debug("topic already stored", zap.String("name", topic.Name))
		return nil
	}
	return &StatusError{Op: "insert topic", StatusCode: resp.StatusCode(), Body: resp.String()}
}

// FetchUnprocessedTopics returns topics with processed=false. Records that
// fail validation are logged and skipped.
func (c *SupabaseClient) FetchUnprocessedTopics(ctx context.Context) ([]models.Topic, error) {
	resp, err := c.R().
		SetContext(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("processed", "eq.false").
		Get(topicsPath)
	if err != nil {
		return nil, fmt.Errorf("fetch topics: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{Op: "fetch topics", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}

	topics := make([]models.Topic, 0, len(raw))
	rejected := 0
	for _, r := range raw {
		t, err := c.decodeTopic(r)
		if err != nil {
			rejected++
			c.log.Warn("rejected topic record", zap.Error(err))
			continue
		}
		topics = append(topics, t)
	}
	if rejected > 0 {
		c.log.Warn("topic records rejected", zap.Int("rejected", rejected), zap.Int("kept", len(topics)))
	}
	return topics, nil
}

func (c *SupabaseClient) decodeTopic(raw json.RawMessage) (models.Topic, error) {
	var t models.Topic
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := c.validate.Struct(t); err != nil {
		return t, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return t, nil
}

func (c *SupabaseClient) MarkTopicProcessed(ctx context.Context, name string) error {
	resp, err := c.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetQueryParam("name", "eq."+name).
		SetBody(map[string]bool{"processed": true}).
		Patch(topicsPath)
	if err != nil {
		return fmt.Errorf("mark topic processed: %w", err)
	}
	if !resp.IsSuccess() {
		return &StatusError{Op: "mark topic processed", StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

// InsertArticle stores a blog post. A slug conflict (409) is a no-op and
// reports created=false.
func (c *SupabaseClient) InsertArticle(ctx context.Context, article *models.Article) (bool, error) {
	if article == nil {
		return false, fmt.Errorf("%w: nil article", ErrInvalidRecord)
	}
	if err := c.validate.Struct(article); err != nil {
		return false, fmt.Errorf("%w: article %q: %v", ErrInvalidRecord, article.Slug, err)
	}

	resp, err := c.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(article).
		Post(postsPath)
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusConflict:
		return false, nil
	case http.StatusOK, http.StatusCreated:
		var rows []models.Article
		if err := json.Unmarshal(resp.Body(), &rows); err == nil && len(rows) > 0 {
			article.ID = rows[0].ID
		}
		return true, nil
	}
	return false, &StatusError{Op: "insert article", StatusCode: resp.StatusCode(), Body: resp.String()}
}

// EnsureCategory returns the id of the category with cat.Slug, creating it if absent.
func (c *SupabaseClient) EnsureCategory(ctx context.Context, cat models.Category) (string, error) {
	if err := c.validate.Struct(cat); err != nil {
		return "", fmt.Errorf("%w: category %q: %v", ErrInvalidRecord, cat.Name, err)
	}

	var found []models.Category
	resp, err := c.R().
		SetContext(ctx).
		SetQueryParam("select", "id,name,slug").
		SetQueryParam("slug", "eq."+cat.Slug).
		Get(categoriesPath)
	if err != nil {
		return "", fmt.Errorf("lookup category: %w", err)
	}
	if !resp.IsSuccess() {
		return "", &StatusError{Op: "lookup category", StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if err := json.Unmarshal(resp.Body(), &found); err != nil {
		return "", fmt.Errorf("decode categories: %w", err)
	}
	if len(found) > 0 && found[0].ID != "" {
		return found[0].ID, nil
	}

	resp, err = c.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(models.Category{Name: cat.Name, Slug: cat.Slug}).
		Post(categoriesPath)
	if err != nil {
		return "", fmt.Errorf("create category: %w", err)
	}
	if !resp.IsSuccess() {
		return "", &StatusError{Op: "create category", StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	var created []models.Category
	if err := json.Unmarshal(resp.Body(), &created); err != nil || len(created) == 0 || created[0].ID == "" {
		return "", fmt.Errorf("create category %q: no id in response", cat.Slug)
	}
	c.log.Info("category created", zap.String("slug", cat.Slug), zap.String("id", created[0].ID))
	return created[0].ID, nil
}

var _ core.ContentStore = (*SupabaseClient)(nil)
