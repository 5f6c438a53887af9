package config

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/competitor-agent/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Data        DataConfig         `yaml:"data" mapstructure:"data"`
	Crawl       CrawlConfig        `yaml:"crawl" mapstructure:"crawl"`
	Renderer    RendererConfig     `yaml:"renderer" mapstructure:"renderer"`
	Anthropic   AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Classify    ClassifyConfig     `yaml:"classify" mapstructure:"classify"`
	Prompts     PromptsConfig      `yaml:"prompts" mapstructure:"prompts"`
	Merge       MergeConfig        `yaml:"merge" mapstructure:"merge"`
	Server      ServerConfig       `yaml:"server" mapstructure:"server"`
	Log         LogConfig          `yaml:"log" mapstructure:"log"`
	Competitors []model.Competitor `yaml:"competitors" mapstructure:"competitors"`
}

// DataConfig locates the flat-file ledgers and stored email payloads.
type DataConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// UpdatesCSV is the canonical update ledger path.
func (d DataConfig) UpdatesCSV() string { return filepath.Join(d.Dir, "updates.csv") }

// EmailsCSV is the per-email status ledger path.
func (d DataConfig) EmailsCSV() string { return filepath.Join(d.Dir, "emails.csv") }

// SendersCSV is the per-sender aggregate ledger path.
func (d DataConfig) SendersCSV() string { return filepath.Join(d.Dir, "email_senders.csv") }

// EmailsDir holds raw inbound payload JSON files.
func (d DataConfig) EmailsDir() string { return filepath.Join(d.Dir, "emails") }

// MirrorDB is the non-authoritative sqlite analytics mirror path.
func (d DataConfig) MirrorDB() string { return filepath.Join(d.Dir, "updates.db") }

// LockFile is the scan job's advisory lock path.
func (d DataConfig) LockFile() string { return filepath.Join(d.Dir, ".scan.lock") }

// ExportsDir holds rollup exports.
func (d DataConfig) ExportsDir() string { return filepath.Join(d.Dir, "exports") }

// CrawlConfig configures the per-competitor frontier and fetcher.
type CrawlConfig struct {
	UserAgent          string   `yaml:"user_agent" mapstructure:"user_agent"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	MaxPagesPerSite    int      `yaml:"max_pages_per_site" mapstructure:"max_pages_per_site"`
	WithinDomainOnly   bool     `yaml:"follow_within_domain_only" mapstructure:"follow_within_domain_only"`
	DelayMillis        int      `yaml:"delay_millis" mapstructure:"delay_millis"`
	MinContentBytes    int      `yaml:"min_content_bytes" mapstructure:"min_content_bytes"`
	ArticleMarkers     []string `yaml:"article_markers" mapstructure:"article_markers"`
	Concurrency        int      `yaml:"concurrency" mapstructure:"concurrency"`
}

// RendererConfig configures the headless-rendering fallback fetch.
type RendererConfig struct {
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	SettleMillis int    `yaml:"settle_millis" mapstructure:"settle_millis"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds AI oracle settings shared by the matcher, quality
// gate, and enrichment classifier.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ClassifyConfig configures the enrichment classifier.
type ClassifyConfig struct {
	Categories       []string    `yaml:"categories" mapstructure:"categories"`
	ImpactRules      ImpactRules `yaml:"impact_rules" mapstructure:"impact_rules"`
	IndustryContext  string      `yaml:"industry_context" mapstructure:"industry_context"`
	MaxBodyChars     int         `yaml:"max_body_chars" mapstructure:"max_body_chars"`
	BatchSize        int         `yaml:"batch_size" mapstructure:"batch_size"`
	SleepBetweenSecs int         `yaml:"sleep_between_secs" mapstructure:"sleep_between_secs"`
}

// ImpactRules are the prompt guidance lines per impact level.
type ImpactRules struct {
	High   []string `yaml:"high" mapstructure:"high"`
	Medium []string `yaml:"medium" mapstructure:"medium"`
	Low    []string `yaml:"low" mapstructure:"low"`
}

// PromptsConfig holds the email oracle prompt templates. Templates may use
// {competitors_list}, {from_address}, {subject}, and {body_preview}
// placeholders.
type PromptsConfig struct {
	EmailMatch   PromptTemplate `yaml:"email_match" mapstructure:"email_match"`
	EmailQuality PromptTemplate `yaml:"email_quality" mapstructure:"email_quality"`
}

// PromptTemplate pairs a system prompt with a user prompt template.
type PromptTemplate struct {
	System string `yaml:"system" mapstructure:"system"`
	User   string `yaml:"user" mapstructure:"user"`
}

// MergeConfig configures cross-batch reconciliation.
type MergeConfig struct {
	ReferenceDatePolicy string `yaml:"reference_date_policy" mapstructure:"reference_date_policy"`
}

// Policy returns the typed reference-date policy.
func (m MergeConfig) Policy() model.RefDatePolicy {
	if m.ReferenceDatePolicy == string(model.RefCollectedFirst) {
		return model.RefCollectedFirst
	}
	return model.RefPublishedFirst
}

// ServerConfig configures the inbound email webhook server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultCategories is the closed category set used when none is configured.
// "Other" is always appended if missing; it is the coercion fallback.
var DefaultCategories = []string{
	"Product/Feature", "Pricing/Plans", "Partnership", "Acquisition/Investment",
	"Case Study/Customer", "Events/Webinar", "Best Practices/Guides",
	"Security/Compliance", "Hiring/Leadership", "Company News", "Other",
}

// DefaultArticleMarkers are the path substrings that mark article-like URLs.
var DefaultArticleMarkers = []string{"/blog/", "/news", "/post", "/article", "/resources", "/insights"}

// Load reads configuration from config.yaml and the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COMPETITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	cfg.normalize()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", "data")
	v.SetDefault("crawl.user_agent", "CompetitorAgent/1.0")
	v.SetDefault("crawl.request_timeout_secs", 20)
	v.SetDefault("crawl.max_pages_per_site", 50)
	v.SetDefault("crawl.follow_within_domain_only", true)
	v.SetDefault("crawl.delay_millis", 500)
	v.SetDefault("crawl.min_content_bytes", 500)
	v.SetDefault("crawl.concurrency", 3)
	v.SetDefault("renderer.settle_millis", 2000)
	v.SetDefault("renderer.timeout_secs", 60)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("classify.industry_context", "membership/club management software")
	v.SetDefault("classify.max_body_chars", 4000)
	v.SetDefault("classify.batch_size", 20)
	v.SetDefault("classify.sleep_between_secs", 2)
	v.SetDefault("merge.reference_date_policy", string(model.RefPublishedFirst))
	v.SetDefault("server.port", 8001)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// normalize fills derived defaults that viper cannot express well.
func (c *Config) normalize() {
	if len(c.Classify.Categories) == 0 {
		c.Classify.Categories = append([]string(nil), DefaultCategories...)
	}
	if !containsFold(c.Classify.Categories, model.CategoryOther) {
		c.Classify.Categories = append(c.Classify.Categories, model.CategoryOther)
	}
	if len(c.Classify.ImpactRules.High) == 0 {
		c.Classify.ImpactRules = ImpactRules{
			High:   []string{"pricing change", "major feature GA", "acquisitions", "big partnerships", "security incidents"},
			Medium: []string{"meaningful feature update", "big case study", "notable event announcements"},
			Low:    []string{"generic tips", "routine posts"},
		}
	}
	if len(c.Crawl.ArticleMarkers) == 0 {
		c.Crawl.ArticleMarkers = append([]string(nil), DefaultArticleMarkers...)
	}
	if c.Prompts.EmailMatch.System == "" {
		c.Prompts.EmailMatch = PromptTemplate{
			System: "You match emails to companies. Respond only with a company name or NONE.",
			User: "Known competitors:\n{competitors_list}\n\n" +
				"Match this email to one of the competitors above.\n" +
				"From: {from_address}\nSubject: {subject}\n\nBody preview:\n{body_preview}",
		}
	}
	if c.Prompts.EmailQuality.System == "" {
		c.Prompts.EmailQuality = PromptTemplate{
			System: "You filter emails for a competitive intelligence system. Respond only with ACCEPT or REJECT.",
			User: "Should this email be processed?\n" +
				"From: {from_address}\nSubject: {subject}\n\nBody preview:\n{body_preview}",
		}
	}
}

// Validate checks invariants that must hold before any pipeline work starts.
// Invalid competitor blocks are skipped with a warning; an empty resulting
// list is fatal. This is the only place configuration problems abort a run.
func (c *Config) Validate() error {
	valid := c.Competitors[:0]
	for _, comp := range c.Competitors {
		if comp.Name == "" || len(comp.StartURLs) == 0 {
			zap.L().Warn("config: skipping invalid competitor block",
				zap.String("name", comp.Name),
				zap.Int("start_urls", len(comp.StartURLs)),
			)
			continue
		}
		valid = append(valid, comp)
	}
	c.Competitors = valid

	if len(c.Competitors) == 0 {
		return eris.New("config: no valid competitors configured")
	}
	return nil
}

// CompetitorNames returns the configured competitor names in order.
func (c *Config) CompetitorNames() []string {
	names := make([]string, 0, len(c.Competitors))
	for _, comp := range c.Competitors {
		names = append(names, comp.Name)
	}
	return names
}

func containsFold(set []string, s string) bool {
	for _, v := range set {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
