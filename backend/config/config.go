package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Minio      MinioConfig      `yaml:"minio"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Mineru     MineruConfig     `yaml:"mineru"`
	LLM        LLMConfig        `yaml:"llm"`
	Estimation EstimationConfig `yaml:"estimation"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
	Users      []User           `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres, sqlite
	DSN    string `yaml:"dsn"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

// ExtractionConfig selects the document-to-text service.
type ExtractionConfig struct {
	Provider       string `yaml:"provider"` // http, mineru
	APIURL         string `yaml:"api_url"`
	APIToken       string `yaml:"api_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type MineruConfig struct {
	APIURL              string `yaml:"api_url"`
	APIToken            string `yaml:"api_token"`
	ModelVersion        string `yaml:"model_version"`
	CallbackURL         string `yaml:"callback_url"`
	Seed                string `yaml:"seed"`
	UID                 string `yaml:"uid"` // account uid, part of the callback checksum
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
}

type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	MaxRetries     int    `yaml:"max_retries"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// EstimationConfig carries the pipeline thresholds. The defaults were calibrated
// for the Polish market (PLN, m² PUM) and should only change with domain input.
type EstimationConfig struct {
	ContextBudget          int     `yaml:"context_budget"`
	TextDocShare           float64 `yaml:"text_doc_share"`
	CharacterizationSlice  int     `yaml:"characterization_slice"`
	PerFileSlice           int     `yaml:"per_file_slice"`
	MinFileContent         int     `yaml:"min_file_content"`
	BatchSlice             int     `yaml:"batch_slice"`
	FewFilesLimit          int     `yaml:"few_files_limit"`
	ConsolidationSlice     int     `yaml:"consolidation_slice"`
	MinConsolidatedItems   int     `yaml:"min_consolidated_items"`
	ExtractedTextRetention int     `yaml:"extracted_text_retention"`
	PlausibilityMinArea    float64 `yaml:"plausibility_min_area"`
	CostPerAreaFloor       float64 `yaml:"cost_per_area_floor"`
	CostPerAreaTarget      float64 `yaml:"cost_per_area_target"`
	FallbackArea           float64 `yaml:"fallback_area"`
	FallbackFloors         int     `yaml:"fallback_floors"`
	FallbackMinArea        float64 `yaml:"fallback_min_area"`
	ModelCallTimeout       Seconds `yaml:"model_call_timeout_seconds"`
	ExtractionTimeout      Seconds `yaml:"extraction_timeout_seconds"`
}

// Seconds is a duration expressed as whole seconds in YAML.
type Seconds int

func (s Seconds) Duration() time.Duration {
	return time.Duration(s) * time.Second
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// User is a configured login. Password may be plain text or a bcrypt hash.
type User struct {
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("OPENAI_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.LLM.MaxRetries = n
		}
	}
	if v := os.Getenv("EXTRACTION_API_URL"); v != "" {
		c.Extraction.APIURL = v
	}
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 7
	}
	if c.Extraction.Provider == "" {
		c.Extraction.Provider = "http"
	}
	if c.Extraction.TimeoutSeconds == 0 {
		c.Extraction.TimeoutSeconds = 300
	}
	if c.Mineru.ModelVersion == "" {
		c.Mineru.ModelVersion = "vlm"
	}
	if c.Mineru.PollIntervalSeconds == 0 {
		c.Mineru.PollIntervalSeconds = 5
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o"
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 2
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 180
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	c.Estimation.fill()
}

// DefaultEstimation returns the thresholds used when config.yaml leaves them out.
func DefaultEstimation() EstimationConfig {
	var e EstimationConfig
	e.fill()
	return e
}

func (e *EstimationConfig) fill() {
	if e.ContextBudget == 0 {
		e.ContextBudget = 50000
	}
	if e.TextDocShare == 0 {
		e.TextDocShare = 0.6
	}
	if e.CharacterizationSlice == 0 {
		e.CharacterizationSlice = 30000
	}
	if e.PerFileSlice == 0 {
		e.PerFileSlice = 20000
	}
	if e.MinFileContent == 0 {
		e.MinFileContent = 50
	}
	if e.BatchSlice == 0 {
		e.BatchSlice = 45000
	}
	if e.FewFilesLimit == 0 {
		e.FewFilesLimit = 3
	}
	if e.ConsolidationSlice == 0 {
		e.ConsolidationSlice = 30000
	}
	if e.MinConsolidatedItems == 0 {
		e.MinConsolidatedItems = 5
	}
	if e.ExtractedTextRetention == 0 {
		e.ExtractedTextRetention = 10000
	}
	if e.PlausibilityMinArea == 0 {
		e.PlausibilityMinArea = 100
	}
	if e.CostPerAreaFloor == 0 {
		e.CostPerAreaFloor = 3500
	}
	if e.CostPerAreaTarget == 0 {
		e.CostPerAreaTarget = 4500
	}
	if e.FallbackArea == 0 {
		e.FallbackArea = 1200
	}
	if e.FallbackFloors == 0 {
		e.FallbackFloors = 4
	}
	if e.FallbackMinArea == 0 {
		e.FallbackMinArea = 50
	}
	if e.ModelCallTimeout == 0 {
		e.ModelCallTimeout = 180
	}
	if e.ExtractionTimeout == 0 {
		e.ExtractionTimeout = 600
	}
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
