// Package topics defines the topic clustering and research generation types
// exchanged with the reasoning capability, together with their validation
// rules. Validation is strict: a response violating any rule is rejected as
// a whole, no partial result is accepted.
package topics

import (
	"errors"
	"fmt"
	"net/url"
)

// Relevancy bounds and the number of difficulty levels per research article.
const (
	MinRelevancy = 0
	MaxRelevancy = 100
	LevelCount   = 5
)

// Validation errors.
var (
	ErrEmptyTopic          = errors.New("topic label is empty")
	ErrRelevancyOutOfRange = errors.New("relevancy out of range")
	ErrInvalidArticleLink  = errors.New("article link is not a valid URL")
	ErrEmptyLevel          = errors.New("research level body is empty")
	ErrInvalidReferenceURL = errors.New("reference url is not a valid URL")
	ErrInvalidLevel        = errors.New("level must be between 1 and 5")
)

// ArticleRef identifies a member article of a topic by (title, link).
type ArticleRef struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// TopicCluster is one clustered topic with its relevancy score and the
// subset of articles belonging to it.
type TopicCluster struct {
	Topic     string       `json:"topic"`
	Relevancy float64      `json:"relevancy"`
	Articles  []ArticleRef `json:"articles"`
}

// Validate checks the cluster against the fixed schema: non-empty label,
// relevancy in [0,100] and well-formed member article links.
func (t TopicCluster) Validate() error {
	if t.Topic == "" {
		return ErrEmptyTopic
	}

	if t.Relevancy < MinRelevancy || t.Relevancy > MaxRelevancy {
		return fmt.Errorf("%w: %v", ErrRelevancyOutOfRange, t.Relevancy)
	}

	for _, a := range t.Articles {
		if !validURL(a.Link) {
			return fmt.Errorf("%w: %q", ErrInvalidArticleLink, a.Link)
		}
	}

	return nil
}

// Reference is one numbered citation entry of a research article.
type Reference struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ResearchArticle is the generated five-level research content for a topic.
type ResearchArticle struct {
	Level1     string      `json:"level_1"`
	Level2     string      `json:"level_2"`
	Level3     string      `json:"level_3"`
	Level4     string      `json:"level_4"`
	Level5     string      `json:"level_5"`
	References []Reference `json:"references"`
}

// Level returns the body for a difficulty level in 1..5.
func (r ResearchArticle) Level(n int) (string, error) {
	switch n {
	case 1:
		return r.Level1, nil
	case 2:
		return r.Level2, nil
	case 3:
		return r.Level3, nil
	case 4:
		return r.Level4, nil
	case 5:
		return r.Level5, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrInvalidLevel, n)
	}
}

// Validate checks the article against the fixed schema: five non-empty
// level bodies and references with well-formed URLs.
func (r ResearchArticle) Validate() error {
	for n := 1; n <= LevelCount; n++ {
		body, _ := r.Level(n)
		if body == "" {
			return fmt.Errorf("%w: level_%d", ErrEmptyLevel, n)
		}
	}

	for _, ref := range r.References {
		if !validURL(ref.URL) {
			return fmt.Errorf("%w: %q", ErrInvalidReferenceURL, ref.URL)
		}
	}

	return nil
}

// DispatchMessage is the unit of work queued per accepted topic.
type DispatchMessage struct {
	Topic TopicCluster `json:"topic"`
	Slug  string       `json:"slug"`
	Date  string       `json:"date"`
}

// validURL accepts absolute http(s)-style URLs with a host.
func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return u.Scheme != "" && u.Host != ""
}
