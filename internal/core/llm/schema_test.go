package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexica-app/lexica-pipeline/internal/core/topics"
)

func TestParseTopicClusters(t *testing.T) {
	valid := `[{"topic":"AI Policy","relevancy":72,"articles":[{"title":"EU act","link":"https://example.com/eu"}]}]`

	t.Run("bare array", func(t *testing.T) {
		clusters, err := ParseTopicClusters([]byte(valid))
		require.NoError(t, err)
		require.Len(t, clusters, 1)
		assert.Equal(t, "AI Policy", clusters[0].Topic)
		assert.InDelta(t, 72, clusters[0].Relevancy, 0)
		require.Len(t, clusters[0].Articles, 1)
		assert.Equal(t, "https://example.com/eu", clusters[0].Articles[0].Link)
	})

	t.Run("topics wrapper key", func(t *testing.T) {
		clusters, err := ParseTopicClusters([]byte(`{"topics":` + valid + `}`))
		require.NoError(t, err)
		assert.Len(t, clusters, 1)
	})

	t.Run("results wrapper key", func(t *testing.T) {
		clusters, err := ParseTopicClusters([]byte(`{"results":` + valid + `}`))
		require.NoError(t, err)
		assert.Len(t, clusters, 1)
	})

	t.Run("empty array", func(t *testing.T) {
		clusters, err := ParseTopicClusters([]byte(`[]`))
		require.NoError(t, err)
		assert.Empty(t, clusters)
	})

	invalid := []struct {
		name    string
		content string
		wantErr error
	}{
		{"not json", `topic: AI`, ErrMalformedResponse},
		{"unknown wrapper key", `{"clusters":` + valid + `}`, ErrSchemaViolation},
		{"missing topic", `[{"relevancy":72,"articles":[]}]`, ErrSchemaViolation},
		{"missing relevancy", `[{"topic":"AI","articles":[]}]`, ErrSchemaViolation},
		{"missing articles", `[{"topic":"AI","relevancy":72}]`, ErrSchemaViolation},
		{"relevancy above 100", `[{"topic":"AI","relevancy":101,"articles":[]}]`, ErrSchemaViolation},
		{"relevancy below 0", `[{"topic":"AI","relevancy":-3,"articles":[]}]`, ErrSchemaViolation},
		{"article missing link", `[{"topic":"AI","relevancy":70,"articles":[{"title":"x"}]}]`, ErrSchemaViolation},
		{"article link not a url", `[{"topic":"AI","relevancy":70,"articles":[{"title":"x","link":"nope"}]}]`, ErrSchemaViolation},
		{"one bad cluster fails all", valid[:len(valid)-1] + `,{"topic":"","relevancy":50,"articles":[]}]`, ErrSchemaViolation},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			clusters, err := ParseTopicClusters([]byte(tt.content))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, clusters)
		})
	}
}

func TestParseResearchArticle(t *testing.T) {
	valid := `{
		"level_1":"a","level_2":"b","level_3":"c","level_4":"d","level_5":"e",
		"references":[{"id":1,"title":"EU act","url":"https://example.com/eu"}]
	}`

	t.Run("valid", func(t *testing.T) {
		article, err := ParseResearchArticle([]byte(valid))
		require.NoError(t, err)
		assert.Equal(t, "a", article.Level1)
		assert.Equal(t, "e", article.Level5)
		require.Len(t, article.References, 1)
		assert.Equal(t, topics.Reference{ID: 1, Title: "EU act", URL: "https://example.com/eu"}, article.References[0])
	})

	t.Run("empty references array", func(t *testing.T) {
		article, err := ParseResearchArticle([]byte(`{"level_1":"a","level_2":"b","level_3":"c","level_4":"d","level_5":"e","references":[]}`))
		require.NoError(t, err)
		assert.Empty(t, article.References)
	})

	invalid := []struct {
		name    string
		content string
		wantErr error
	}{
		{"not json", `level one`, ErrMalformedResponse},
		{"missing level", `{"level_1":"a","level_2":"b","level_3":"c","level_4":"d","references":[]}`, ErrSchemaViolation},
		{"empty level body", `{"level_1":"a","level_2":"","level_3":"c","level_4":"d","level_5":"e","references":[]}`, ErrSchemaViolation},
		{"missing references", `{"level_1":"a","level_2":"b","level_3":"c","level_4":"d","level_5":"e"}`, ErrSchemaViolation},
		{"reference missing url", `{"level_1":"a","level_2":"b","level_3":"c","level_4":"d","level_5":"e","references":[{"id":1,"title":"x"}]}`, ErrSchemaViolation},
		{"reference bad url", `{"level_1":"a","level_2":"b","level_3":"c","level_4":"d","level_5":"e","references":[{"id":1,"title":"x","url":"nope"}]}`, ErrSchemaViolation},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			article, err := ParseResearchArticle([]byte(tt.content))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, article)
		})
	}
}
