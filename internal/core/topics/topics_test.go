package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCluster() TopicCluster {
	return TopicCluster{
		Topic:     "Central Bank Policy",
		Relevancy: 82,
		Articles: []ArticleRef{
			{Title: "Rates held steady", Link: "https://example.com/rates"},
			{Title: "Markets react", Link: "http://example.org/markets"},
		},
	}
}

func TestTopicClusterValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TopicCluster)
		wantErr error
	}{
		{
			name:   "valid cluster",
			mutate: func(*TopicCluster) {},
		},
		{
			name:   "empty articles allowed",
			mutate: func(c *TopicCluster) { c.Articles = nil },
		},
		{
			name:   "relevancy at lower bound",
			mutate: func(c *TopicCluster) { c.Relevancy = MinRelevancy },
		},
		{
			name:   "relevancy at upper bound",
			mutate: func(c *TopicCluster) { c.Relevancy = MaxRelevancy },
		},
		{
			name:    "empty topic",
			mutate:  func(c *TopicCluster) { c.Topic = "" },
			wantErr: ErrEmptyTopic,
		},
		{
			name:    "relevancy below range",
			mutate:  func(c *TopicCluster) { c.Relevancy = -1 },
			wantErr: ErrRelevancyOutOfRange,
		},
		{
			name:    "relevancy above range",
			mutate:  func(c *TopicCluster) { c.Relevancy = 101 },
			wantErr: ErrRelevancyOutOfRange,
		},
		{
			name:    "relative article link",
			mutate:  func(c *TopicCluster) { c.Articles[0].Link = "/news/rates" },
			wantErr: ErrInvalidArticleLink,
		},
		{
			name:    "empty article link",
			mutate:  func(c *TopicCluster) { c.Articles[1].Link = "" },
			wantErr: ErrInvalidArticleLink,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cluster := validCluster()
			tt.mutate(&cluster)

			err := cluster.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func validArticle() ResearchArticle {
	return ResearchArticle{
		Level1: "For beginners.",
		Level2: "A bit deeper.",
		Level3: "Intermediate.",
		Level4: "Advanced.",
		Level5: "Expert treatment.",
		References: []Reference{
			{ID: 1, Title: "Rates held steady", URL: "https://example.com/rates"},
		},
	}
}

func TestResearchArticleValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ResearchArticle)
		wantErr error
	}{
		{
			name:   "valid article",
			mutate: func(*ResearchArticle) {},
		},
		{
			name:   "no references allowed",
			mutate: func(a *ResearchArticle) { a.References = nil },
		},
		{
			name:    "empty level body",
			mutate:  func(a *ResearchArticle) { a.Level3 = "" },
			wantErr: ErrEmptyLevel,
		},
		{
			name:    "bad reference url",
			mutate:  func(a *ResearchArticle) { a.References[0].URL = "not a url" },
			wantErr: ErrInvalidReferenceURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			article := validArticle()
			tt.mutate(&article)

			err := article.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResearchArticleLevel(t *testing.T) {
	article := validArticle()

	for n := 1; n <= LevelCount; n++ {
		body, err := article.Level(n)
		require.NoError(t, err)
		assert.NotEmpty(t, body)
	}

	for _, n := range []int{0, 6, -1} {
		_, err := article.Level(n)
		assert.ErrorIs(t, err, ErrInvalidLevel)
	}
}
