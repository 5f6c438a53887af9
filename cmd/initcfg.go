package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/competitor-agent/internal/config"
	"github.com/sells-group/competitor-agent/internal/model"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "config.yaml"
		if !initForce {
			if _, err := os.Stat(path); err == nil {
				return eris.New("init: config.yaml already exists (use --force to overwrite)")
			}
		}

		starter := config.Config{
			Data: config.DataConfig{Dir: "data"},
			Crawl: config.CrawlConfig{
				UserAgent:          "CompetitorAgent/1.0",
				RequestTimeoutSecs: 20,
				MaxPagesPerSite:    50,
				WithinDomainOnly:   true,
				DelayMillis:        500,
				MinContentBytes:    500,
				ArticleMarkers:     config.DefaultArticleMarkers,
				Concurrency:        3,
			},
			Anthropic: config.AnthropicConfig{Model: "claude-haiku-4-5-20251001"},
			Classify: config.ClassifyConfig{
				Categories:       config.DefaultCategories,
				IndustryContext:  "membership/club management software",
				MaxBodyChars:     4000,
				BatchSize:        20,
				SleepBetweenSecs: 2,
			},
			Merge:  config.MergeConfig{ReferenceDatePolicy: string(model.RefPublishedFirst)},
			Server: config.ServerConfig{Port: 8001},
			Log:    config.LogConfig{Level: "info", Format: "json"},
			Competitors: []model.Competitor{
				{
					Name:      "Example Co",
					StartURLs: []string{"https://example.com/blog/"},
				},
			},
		}

		data, err := yaml.Marshal(&starter)
		if err != nil {
			return eris.Wrap(err, "init: marshal config")
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return eris.Wrap(err, "init: write config.yaml")
		}

		fmt.Println("Wrote config.yaml; set COMPETITOR_ANTHROPIC_KEY and edit the competitors list")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config.yaml")
	rootCmd.AddCommand(initCmd)
}
