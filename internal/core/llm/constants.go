package llm

import "time"

const (
	mockAPIKey     = "mock"
	mockTopicLabel = "General"
	mockRelevancy  = 75

	defaultModel     = "gpt-4o-mini"
	rateLimiterBurst = 5

	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = 1 * time.Minute

	opCluster  = "cluster"
	opResearch = "research"
)
