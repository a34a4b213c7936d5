package llm

import (
	"encoding/json"
	"fmt"

	"github.com/lexica-app/lexica-pipeline/internal/core/feed"
	"github.com/lexica-app/lexica-pipeline/internal/core/topics"
)

const (
	clusterSystemPrompt  = "You are an expert research analyst."
	researchSystemPrompt = "You are an academic writer and educator."
)

func buildClusterPrompt(articles []feed.Article) (string, error) {
	payload, err := json.Marshal(articles)
	if err != nil {
		return "", fmt.Errorf("marshal articles: %w", err)
	}

	return fmt.Sprintf(`Cluster these articles into topics with relevancy scores.
Return ONLY valid JSON: an object with a "topics" key containing an array of
objects, each with:
- topic (string): a short descriptive topic label
- relevancy (number, 0-100): how newsworthy and researchable the topic is
- articles (array of {title, link}): the subset of the supplied articles belonging to the topic, with title and link copied verbatim

Articles:
%s
`, payload), nil
}

func buildResearchPrompt(topic topics.TopicCluster) (string, error) {
	sources, err := json.Marshal(topic.Articles)
	if err != nil {
		return "", fmt.Errorf("marshal topic articles: %w", err)
	}

	return fmt.Sprintf(`Write a research article on "%s"

Use ONLY these sources:
%s

Create 5 levels (very simple -> expert).
Cite sources inline [1], [2].

Return ONLY valid JSON: an object with keys level_1, level_2, level_3,
level_4, level_5 (each a markdown article body) and references (array of
{id, title, url} corresponding to the supplied sources).
`, topic.Topic, sources), nil
}
