package llm

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lexica-app/lexica-pipeline/internal/core/topics"
)

// Schema errors surfaced when a capability response violates its contract.
var (
	ErrMalformedResponse = errors.New("capability response is not valid JSON")
	ErrSchemaViolation   = errors.New("capability response violates schema")
)

// wrapper keys accepted around the topic cluster array. The capability runs
// in JSON-object mode, so a bare array is usually wrapped in an object.
var clusterWrapperKeys = []string{"topics", "results"}

// rawCluster mirrors TopicCluster with pointer fields so missing keys are
// distinguishable from zero values.
type rawCluster struct {
	Topic     *string  `json:"topic"`
	Relevancy *float64 `json:"relevancy"`
	Articles  []struct {
		Title *string `json:"title"`
		Link  *string `json:"link"`
	} `json:"articles"`
}

// ParseTopicClusters parses and strictly validates a clustering response.
// It accepts either a bare JSON array or an object wrapping one under a
// known key. Any malformed document or schema violation fails the whole
// call; no partial topic list is returned.
func ParseTopicClusters(content []byte) ([]topics.TopicCluster, error) {
	raw, err := unwrapClusterArray(content)
	if err != nil {
		return nil, err
	}

	out := make([]topics.TopicCluster, 0, len(raw))

	for i, rc := range raw {
		if rc.Topic == nil || rc.Relevancy == nil {
			return nil, fmt.Errorf("%w: cluster %d is missing topic or relevancy", ErrSchemaViolation, i)
		}

		if rc.Articles == nil {
			return nil, fmt.Errorf("%w: cluster %d is missing articles", ErrSchemaViolation, i)
		}

		cluster := topics.TopicCluster{
			Topic:     *rc.Topic,
			Relevancy: *rc.Relevancy,
			Articles:  make([]topics.ArticleRef, len(rc.Articles)),
		}

		for j, a := range rc.Articles {
			if a.Title == nil || a.Link == nil {
				return nil, fmt.Errorf("%w: cluster %d article %d is missing title or link", ErrSchemaViolation, i, j)
			}

			cluster.Articles[j] = topics.ArticleRef{Title: *a.Title, Link: *a.Link}
		}

		if err := cluster.Validate(); err != nil {
			return nil, fmt.Errorf("%w: cluster %d: %w", ErrSchemaViolation, i, err)
		}

		out = append(out, cluster)
	}

	return out, nil
}

func unwrapClusterArray(content []byte) ([]rawCluster, error) {
	var raw []rawCluster
	if err := json.Unmarshal(content, &raw); err == nil {
		return raw, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(content, &obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	for _, key := range clusterWrapperKeys {
		inner, ok := obj[key]
		if !ok {
			continue
		}

		if err := json.Unmarshal(inner, &raw); err != nil {
			return nil, fmt.Errorf("%w: key %q: %w", ErrSchemaViolation, key, err)
		}

		return raw, nil
	}

	return nil, fmt.Errorf("%w: no topic array found", ErrSchemaViolation)
}

// rawResearch mirrors ResearchArticle with pointer fields for presence checks.
type rawResearch struct {
	Level1     *string `json:"level_1"`
	Level2     *string `json:"level_2"`
	Level3     *string `json:"level_3"`
	Level4     *string `json:"level_4"`
	Level5     *string `json:"level_5"`
	References []struct {
		ID    *int    `json:"id"`
		Title *string `json:"title"`
		URL   *string `json:"url"`
	} `json:"references"`
}

// ParseResearchArticle parses and strictly validates a generation response:
// exactly five non-empty level bodies plus a references array.
func ParseResearchArticle(content []byte) (*topics.ResearchArticle, error) {
	var raw rawResearch
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	levels := []*string{raw.Level1, raw.Level2, raw.Level3, raw.Level4, raw.Level5}
	for i, lvl := range levels {
		if lvl == nil {
			return nil, fmt.Errorf("%w: missing level_%d", ErrSchemaViolation, i+1)
		}
	}

	if raw.References == nil {
		return nil, fmt.Errorf("%w: missing references", ErrSchemaViolation)
	}

	article := &topics.ResearchArticle{
		Level1:     *raw.Level1,
		Level2:     *raw.Level2,
		Level3:     *raw.Level3,
		Level4:     *raw.Level4,
		Level5:     *raw.Level5,
		References: make([]topics.Reference, len(raw.References)),
	}

	for i, r := range raw.References {
		if r.ID == nil || r.Title == nil || r.URL == nil {
			return nil, fmt.Errorf("%w: reference %d is missing id, title or url", ErrSchemaViolation, i)
		}

		article.References[i] = topics.Reference{ID: *r.ID, Title: *r.Title, URL: *r.URL}
	}

	if err := article.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	return article, nil
}
