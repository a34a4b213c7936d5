package feeds

import (
	"github.com/lexica-app/lexica-pipeline/internal/core/feed"
	"github.com/lexica-app/lexica-pipeline/internal/platform/observability"
)

type dedupKey struct {
	title string
	link  string
}

// Normalize deduplicates aggregated entries on the composite (title, link)
// key. The first occurrence wins and the relative order of survivors is
// preserved. Single pass, no cross-run state.
func Normalize(articles []feed.Article) []feed.Article {
	seen := make(map[dedupKey]struct{}, len(articles))
	out := make([]feed.Article, 0, len(articles))

	for _, a := range articles {
		key := dedupKey{title: a.Title, link: a.Link}
		if _, dup := seen[key]; dup {
			observability.ArticlesDeduplicated.Inc()

			continue
		}

		seen[key] = struct{}{}

		out = append(out, a)
	}

	return out
}
