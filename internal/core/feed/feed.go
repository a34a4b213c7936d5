// Package feed defines the article model that flows through the ingestion
// pipeline. Articles are ephemeral: they live for the duration of a single
// pipeline run and are never persisted on their own.
package feed

// Article is one syndication entry after aggregation.
type Article struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Link        string `json:"link"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
}
