package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/lexica-app/lexica-pipeline/internal/core/feed"
	"github.com/lexica-app/lexica-pipeline/internal/core/topics"
	"github.com/lexica-app/lexica-pipeline/internal/platform/config"
	"github.com/lexica-app/lexica-pipeline/internal/platform/observability"
)

type openaiClient struct {
	model       string
	client      *openai.Client
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter

	// Circuit breaker state
	consecutiveFailures int
	circuitOpenUntil    time.Time
	mu                  sync.Mutex
}

func newOpenAI(cfg *config.Config, logger *zerolog.Logger) Client {
	model := cfg.LLMModel
	if model == "" {
		model = defaultModel
	}

	return &openaiClient{
		model:       model,
		client:      openai.NewClient(cfg.LLMAPIKey),
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPS)), rateLimiterBurst),
	}
}

func (c *openaiClient) ClusterTopics(ctx context.Context, articles []feed.Article) ([]topics.TopicCluster, error) {
	prompt, err := buildClusterPrompt(articles)
	if err != nil {
		return nil, err
	}

	content, err := c.complete(ctx, opCluster, clusterSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("cluster topics: %w", err)
	}

	clusters, err := ParseTopicClusters([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("cluster topics: %w", err)
	}

	return clusters, nil
}

func (c *openaiClient) GenerateResearch(ctx context.Context, topic topics.TopicCluster) (*topics.ResearchArticle, error) {
	prompt, err := buildResearchPrompt(topic)
	if err != nil {
		return nil, err
	}

	content, err := c.complete(ctx, opResearch, researchSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate research: %w", err)
	}

	article, err := ParseResearchArticle([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("generate research: %w", err)
	}

	return article, nil
}

// complete performs one blocking chat completion in JSON-object mode and
// returns the raw message content.
func (c *openaiClient) complete(ctx context.Context, operation, system, prompt string) (string, error) {
	if err := c.checkCircuit(); err != nil {
		return "", err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})

	observability.LLMRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		c.recordFailure()

		return "", fmt.Errorf("openai chat completion error: %w", err)
	}

	c.recordSuccess()

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug().Str("operation", operation).Str("content", content).Msg("LLM response")

	return content, nil
}

func (c *openaiClient) checkCircuit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().Before(c.circuitOpenUntil) {
		return fmt.Errorf("circuit breaker is open until %v", c.circuitOpenUntil)
	}

	return nil
}

func (c *openaiClient) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveFailures = 0
}

func (c *openaiClient) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures++
	if c.consecutiveFailures >= circuitBreakerThreshold {
		c.circuitOpenUntil = time.Now().Add(circuitBreakerTimeout)
		c.logger.Warn().
			Int("consecutive_failures", c.consecutiveFailures).
			Time("open_until", c.circuitOpenUntil).
			Msg("Circuit breaker opened")
	}
}
