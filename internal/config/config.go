package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// CacheTTLs controls how long each cached view lives.
type CacheTTLs struct {
	Rubric     time.Duration
	Grading    time.Duration
	PeerReview time.Duration
	Student    time.Duration
	Class      time.Duration
	School     time.Duration
	Assignment time.Duration
}

// DBPool limits the Postgres connection pool.
type DBPool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName        string
	AppEnv         string
	AppPort        string
	LogLevel       string
	DatabaseURL    string
	DBPool         DBPool
	RedisURL       string
	NATSURL        string
	EventChannel   string
	JWTSecret      string
	AIProvider     string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	OracleTimeout  time.Duration
	CacheTTLs      CacheTTLs
	ReportPercent  float64
	FlagPercent    float64
	PeerWeight     float64
	AutoGradeLimit int
	AutoGradeSpan  time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// OracleEnabled reports whether criteria are graded by the language-model oracle
// rather than the local keyword evaluator.
func (c Config) OracleEnabled() bool {
	return c.AIProvider == "openai" && c.OpenAIAPIKey != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SACEL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	durations := map[string]time.Duration{}
	for _, key := range []string{
		"oracle.timeout",
		"cache.rubric_ttl", "cache.grading_ttl", "cache.peer_review_ttl",
		"cache.student_ttl", "cache.class_ttl", "cache.school_ttl", "cache.assignment_ttl",
		"rate_limit.auto_grade_window",
		"database.conn_max_lifetime",
	} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("invalid duration for %s: %q", key, v.GetString(key))
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:       v.GetString("app.name"),
		AppEnv:        v.GetString("app.env"),
		AppPort:       v.GetString("app.port"),
		LogLevel:      strings.ToLower(v.GetString("log.level")),
		DatabaseURL:   v.GetString("database.url"),
		DBPool: DBPool{
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: durations["database.conn_max_lifetime"],
		},
		RedisURL:      v.GetString("redis.url"),
		NATSURL:       v.GetString("nats.url"),
		EventChannel:  v.GetString("events.channel"),
		JWTSecret:     v.GetString("jwt.secret"),
		AIProvider:    strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:  v.GetString("openai.api_key"),
		OpenAIBaseURL: v.GetString("openai.base_url"),
		OpenAIModel:   v.GetString("openai.model"),
		OracleTimeout: durations["oracle.timeout"],
		CacheTTLs: CacheTTLs{
			Rubric:     durations["cache.rubric_ttl"],
			Grading:    durations["cache.grading_ttl"],
			PeerReview: durations["cache.peer_review_ttl"],
			Student:    durations["cache.student_ttl"],
			Class:      durations["cache.class_ttl"],
			School:     durations["cache.school_ttl"],
			Assignment: durations["cache.assignment_ttl"],
		},
		ReportPercent:  v.GetFloat64("plagiarism.report_threshold"),
		FlagPercent:    v.GetFloat64("plagiarism.flag_threshold"),
		PeerWeight:     v.GetFloat64("grading.peer_weight"),
		AutoGradeLimit: v.GetInt("rate_limit.auto_grade_max"),
		AutoGradeSpan:  durations["rate_limit.auto_grade_window"],
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.PeerWeight <= 0 || cfg.PeerWeight >= 1 {
		return Config{}, fmt.Errorf("peer weight must be between 0 and 1, got %v", cfg.PeerWeight)
	}
	if cfg.ReportPercent <= 0 || cfg.ReportPercent > cfg.FlagPercent || cfg.FlagPercent > 100 {
		return Config{}, fmt.Errorf("plagiarism thresholds must satisfy 0 < report <= flag <= 100")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "SACEL API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("events.channel", "sacel:events")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("oracle.timeout", "20s")
	v.SetDefault("cache.rubric_ttl", "24h")
	v.SetDefault("cache.grading_ttl", "24h")
	v.SetDefault("cache.peer_review_ttl", "168h")
	v.SetDefault("cache.student_ttl", "1h")
	v.SetDefault("cache.class_ttl", "30m")
	v.SetDefault("cache.school_ttl", "1h")
	v.SetDefault("cache.assignment_ttl", "5m")
	v.SetDefault("plagiarism.report_threshold", 30)
	v.SetDefault("plagiarism.flag_threshold", 80)
	v.SetDefault("grading.peer_weight", 0.2)
	v.SetDefault("rate_limit.auto_grade_max", 30)
	v.SetDefault("rate_limit.auto_grade_window", "1m")
}
