// Package llm wraps the external reasoning capability used for topic
// clustering and research generation. The capability is consumed, not
// reimplemented: requests are single-shot chat completions and responses are
// parsed and validated against fixed schemas before anything downstream sees
// them.
package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lexica-app/lexica-pipeline/internal/core/feed"
	"github.com/lexica-app/lexica-pipeline/internal/core/topics"
	"github.com/lexica-app/lexica-pipeline/internal/platform/config"
)

// Client is the reasoning/generation capability consumed by the pipeline.
type Client interface {
	// ClusterTopics groups the normalized article list into topics with
	// relevancy scores. A malformed or schema-violating response is a hard
	// failure; no partial topic list is returned.
	ClusterTopics(ctx context.Context, articles []feed.Article) ([]topics.TopicCluster, error)

	// GenerateResearch produces the five difficulty levels plus citations
	// for one topic, using only its member articles as source material.
	GenerateResearch(ctx context.Context, topic topics.TopicCluster) (*topics.ResearchArticle, error)
}

// New returns the OpenAI-backed client, or the deterministic mock when no
// API key is configured.
func New(cfg *config.Config, logger *zerolog.Logger) Client {
	if cfg.LLMAPIKey == "" || cfg.LLMAPIKey == mockAPIKey {
		return &mockClient{}
	}

	return newOpenAI(cfg, logger)
}

type mockClient struct{}

func (c *mockClient) ClusterTopics(_ context.Context, articles []feed.Article) ([]topics.TopicCluster, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	refs := make([]topics.ArticleRef, len(articles))
	for i, a := range articles {
		refs[i] = topics.ArticleRef{Title: a.Title, Link: a.Link}
	}

	return []topics.TopicCluster{{
		Topic:     mockTopicLabel,
		Relevancy: mockRelevancy,
		Articles:  refs,
	}}, nil
}

func (c *mockClient) GenerateResearch(_ context.Context, topic topics.TopicCluster) (*topics.ResearchArticle, error) {
	refs := make([]topics.Reference, len(topic.Articles))
	for i, a := range topic.Articles {
		refs[i] = topics.Reference{ID: i + 1, Title: a.Title, URL: a.Link}
	}

	article := &topics.ResearchArticle{References: refs}

	for n := 1; n <= topics.LevelCount; n++ {
		body := fmt.Sprintf("# %s (level %d)\n\nMock research body covering %d sources [1].", topic.Topic, n, len(refs))

		switch n {
		case 1:
			article.Level1 = body
		case 2:
			article.Level2 = body
		case 3:
			article.Level3 = body
		case 4:
			article.Level4 = body
		case 5:
			article.Level5 = body
		}
	}

	return article, nil
}
