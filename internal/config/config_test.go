package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/competitor-agent/internal/model"
)

func TestValidateSkipsInvalidCompetitors(t *testing.T) {
	cfg := &Config{
		Competitors: []model.Competitor{
			{Name: "", StartURLs: []string{"https://a.example/blog"}},
			{Name: "NoURLs"},
			{Name: "ClubCo", StartURLs: []string{"https://clubco.example/blog"}},
		},
	}

	err := cfg.Validate()
	require.NoError(t, err)
	require.Len(t, cfg.Competitors, 1)
	assert.Equal(t, "ClubCo", cfg.Competitors[0].Name)
}

func TestValidateFailsWithNoCompetitors(t *testing.T) {
	cfg := &Config{
		Competitors: []model.Competitor{
			{Name: "Empty"},
		},
	}

	err := cfg.Validate()
	assert.Error(t, err)
}

func TestNormalizeEnsuresOtherCategory(t *testing.T) {
	cfg := &Config{}
	cfg.Classify.Categories = []string{"Pricing/Plans", "Company News"}
	cfg.normalize()

	assert.Contains(t, cfg.Classify.Categories, model.CategoryOther)
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.normalize()

	assert.NotEmpty(t, cfg.Classify.Categories)
	assert.NotEmpty(t, cfg.Crawl.ArticleMarkers)
	assert.NotEmpty(t, cfg.Prompts.EmailMatch.User)
	assert.NotEmpty(t, cfg.Prompts.EmailQuality.User)
	assert.Contains(t, cfg.Prompts.EmailMatch.User, "{competitors_list}")
}

func TestMergePolicy(t *testing.T) {
	assert.Equal(t, model.RefPublishedFirst, MergeConfig{}.Policy())
	assert.Equal(t, model.RefCollectedFirst, MergeConfig{ReferenceDatePolicy: "collected_first"}.Policy())
	assert.Equal(t, model.RefPublishedFirst, MergeConfig{ReferenceDatePolicy: "bogus"}.Policy())
}

func TestDataPaths(t *testing.T) {
	d := DataConfig{Dir: "data"}

	assert.Equal(t, "data/updates.csv", d.UpdatesCSV())
	assert.Equal(t, "data/emails.csv", d.EmailsCSV())
	assert.Equal(t, "data/email_senders.csv", d.SendersCSV())
	assert.Equal(t, "data/emails", d.EmailsDir())
	assert.Equal(t, "data/.scan.lock", d.LockFile())
}
