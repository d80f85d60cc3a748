package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/memory"
	"github.com/kailas-cloud/recollect/internal/domain/query"
)

// Backend drivers.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Cache KV drivers.
const (
	KVRueidis = "rueidis"
	KVGoRedis = "goredis"
)

// Embedding providers.
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
)

// Config holds the recollect configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Strategies StrategiesConfig `yaml:"strategies"`
	Router     RouterConfig     `yaml:"router"`
	Learning   LearningConfig   `yaml:"learning"`
	Cache      CacheConfig      `yaml:"cache"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// AuthConfig holds API authentication settings. Empty keys disable auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
	File  string `yaml:"file"`  // optional rotating JSON log file
}

// DatabaseConfig selects the search backend and the shared KV store.
type DatabaseConfig struct {
	Backend          string   `yaml:"backend"`   // redis, memory (default: redis)
	KVDriver         string   `yaml:"kv_driver"` // rueidis, goredis (default: rueidis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	Index            string   `yaml:"index"`
	SeedFile         string   `yaml:"seed_file"` // JSON lines loaded into the memory backend
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"` // none, openai
	Name             string `yaml:"name"`     // label for metrics (nebius, openai, ollama)
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	TimeoutMs        int    `yaml:"timeout_ms"`
}

// StrategiesConfig tunes the strategy fan-out and fusion.
type StrategiesConfig struct {
	Enabled          []string `yaml:"enabled"`
	AdapterTimeoutMs int      `yaml:"adapter_timeout_ms"`
	Overfetch        int      `yaml:"overfetch"`
	Fuzziness        int      `yaml:"fuzziness"`
	RRFK             int      `yaml:"rrf_k"`
}

// ProfileConfig declares a router profile.
type ProfileConfig struct {
	ID      string        `yaml:"id"`
	Weights query.Weights `yaml:"weights"`
}

// RouterConfig holds router settings. Empty profiles select the built-in set.
type RouterConfig struct {
	Seed     uint64          `yaml:"seed"`
	Profiles []ProfileConfig `yaml:"profiles"`
}

// LearningConfig holds learning engine and feedback queue settings.
type LearningConfig struct {
	Capacity           int     `yaml:"capacity"`
	MinSamples         int     `yaml:"min_samples"`
	RefreshIntervalSec int     `yaml:"refresh_interval_sec"`
	TrendWindow        int     `yaml:"trend_window"`
	QueueBuffer        int     `yaml:"queue_buffer"`
	SatisfactionWeight float64 `yaml:"satisfaction_weight"`
}

// CacheConfig holds result and embedding cache settings.
type CacheConfig struct {
	L1Size       int        `yaml:"l1_size"`
	L1TTLSec     int        `yaml:"l1_ttl_sec"`
	L2Enabled    bool       `yaml:"l2_enabled"`
	L2TTLSec     int        `yaml:"l2_ttl_sec"`
	L2Prefix     string     `yaml:"l2_prefix"`
	L3MaxCostMB  int        `yaml:"l3_max_cost_mb"`
	L3TTLSec     int        `yaml:"l3_ttl_sec"`
	KeyPrecision int        `yaml:"key_precision"`
	Warm         WarmConfig `yaml:"warm"`
}

// WarmConfig holds learned cache warming settings.
type WarmConfig struct {
	Enabled      bool `yaml:"enabled"`
	IntervalSec  int  `yaml:"interval_sec"`
	TopN         int  `yaml:"top_n"`
	Concurrency  int  `yaml:"concurrency"`
	LedgerTTLSec int  `yaml:"ledger_ttl_sec"`
}

// SchedulerConfig holds memory scheduler and reranker settings.
type SchedulerConfig struct {
	Preset              string  `yaml:"preset"`
	DecayRate           float64 `yaml:"decay_rate"`
	HalfLifeDays        float64 `yaml:"half_life_days"` // overrides decay_rate when set
	DefaultK            int     `yaml:"default_k"`
	TrimOnSearch        bool    `yaml:"trim_on_search"` // schedule fused results before returning them
	RerankWeight        float64 `yaml:"rerank_weight"`  // 0 disables the recency reranker
	RerankHalfLifeHours int     `yaml:"rerank_half_life_hours"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	setDefault(&c.HTTP.Port, 8080)
	setDefault(&c.HTTP.ReadTimeoutSec, 10)
	setDefault(&c.HTTP.WriteTimeoutSec, 10)
	setDefault(&c.HTTP.ShutdownSec, 10)

	setDefaultStr(&c.Database.Backend, BackendRedis)
	setDefaultStr(&c.Database.KVDriver, KVRueidis)
	setDefault(&c.Database.ReadinessTimeout, 10)
	setDefaultStr(&c.Database.KeyPrefix, "recollect:mem:")
	setDefaultStr(&c.Database.Index, "recollect_memories")

	setDefaultStr(&c.Embedding.Provider, ProviderNone)
	setDefaultStr(&c.Embedding.Name, c.Embedding.Provider)
	setDefault(&c.Embedding.TimeoutMs, 5000)

	if len(c.Strategies.Enabled) == 0 {
		c.Strategies.Enabled = []string{"fulltext"}
		if c.Embedding.Provider != ProviderNone {
			c.Strategies.Enabled = append([]string{"vector"}, c.Strategies.Enabled...)
		}
		if c.Database.Backend == BackendMemory {
			c.Strategies.Enabled = append(c.Strategies.Enabled, "fuzzy")
		}
	}
	setDefault(&c.Strategies.AdapterTimeoutMs, 2000)
	setDefault(&c.Strategies.Overfetch, 2)
	setDefault(&c.Strategies.Fuzziness, 1)
	setDefault(&c.Strategies.RRFK, 60)

	setDefault(&c.Learning.Capacity, 10000)
	setDefault(&c.Learning.MinSamples, 10)
	setDefault(&c.Learning.RefreshIntervalSec, 60)
	setDefault(&c.Learning.TrendWindow, 100)
	setDefault(&c.Learning.QueueBuffer, 1024)
	if c.Learning.SatisfactionWeight == 0 {
		c.Learning.SatisfactionWeight = 0.7
	}

	setDefault(&c.Cache.L1Size, 1000)
	setDefault(&c.Cache.L1TTLSec, 300)
	setDefault(&c.Cache.L2TTLSec, 3600)
	setDefaultStr(&c.Cache.L2Prefix, "recollect:cache:")
	setDefault(&c.Cache.L3MaxCostMB, 64)
	setDefault(&c.Cache.L3TTLSec, 3600)
	setDefault(&c.Cache.KeyPrecision, 4)
	setDefault(&c.Cache.Warm.IntervalSec, 300)
	setDefault(&c.Cache.Warm.TopN, 20)
	setDefault(&c.Cache.Warm.Concurrency, 4)
	setDefault(&c.Cache.Warm.LedgerTTLSec, 600)

	setDefaultStr(&c.Scheduler.Preset, memory.PresetBalanced)
	if c.Scheduler.DecayRate == 0 {
		c.Scheduler.DecayRate = 0.1
	}
	setDefault(&c.Scheduler.DefaultK, 10)
	setDefault(&c.Scheduler.RerankHalfLifeHours, 24*7)
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Backend {
	case BackendRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("database.backend must be %q or %q, got %q", BackendRedis, BackendMemory, c.Database.Backend)
	}
	switch c.Database.KVDriver {
	case KVRueidis, KVGoRedis:
	default:
		return fmt.Errorf("database.kv_driver must be %q or %q, got %q", KVRueidis, KVGoRedis, c.Database.KVDriver)
	}
	if c.Cache.L2Enabled && len(c.Database.Addrs) == 0 {
		return fmt.Errorf("cache.l2_enabled requires database.addrs")
	}

	switch c.Embedding.Provider {
	case ProviderNone:
	case ProviderOpenAI:
		if c.Embedding.Model == "" {
			return fmt.Errorf("embedding.model is required for provider %q", ProviderOpenAI)
		}
	default:
		return fmt.Errorf("embedding.provider must be %q or %q, got %q", ProviderNone, ProviderOpenAI, c.Embedding.Provider)
	}
	if c.Database.Backend == BackendRedis && c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions is required for the redis backend index")
	}

	if err := c.validateStrategies(); err != nil {
		return err
	}
	if err := c.validateRouter(); err != nil {
		return err
	}

	if c.Learning.SatisfactionWeight < 0 || c.Learning.SatisfactionWeight > 1 {
		return domain.ConfigErrorf("learning.satisfaction_weight must be in [0,1], got %v", c.Learning.SatisfactionWeight)
	}
	if c.Cache.KeyPrecision < 0 || c.Cache.KeyPrecision > 8 {
		return fmt.Errorf("cache.key_precision must be between 0 and 8, got %d", c.Cache.KeyPrecision)
	}

	return c.validateScheduler()
}

func (c *Config) validateStrategies() error {
	seen := make(map[string]bool, len(c.Strategies.Enabled))
	for _, s := range c.Strategies.Enabled {
		switch s {
		case "vector":
			if c.Embedding.Provider == ProviderNone {
				return fmt.Errorf("strategies.enabled: vector requires an embedding provider")
			}
		case "fulltext":
		case "fuzzy":
			if c.Database.Backend != BackendMemory {
				return fmt.Errorf("strategies.enabled: fuzzy requires the %q backend", BackendMemory)
			}
		default:
			return fmt.Errorf("strategies.enabled: unknown strategy %q", s)
		}
		if seen[s] {
			return fmt.Errorf("strategies.enabled: duplicate strategy %q", s)
		}
		seen[s] = true
	}
	if c.Strategies.Fuzziness < 0 || c.Strategies.Fuzziness > 2 {
		return fmt.Errorf("strategies.fuzziness must be between 0 and 2, got %d", c.Strategies.Fuzziness)
	}
	return nil
}

func (c *Config) validateRouter() error {
	ids := make([]string, 0, len(c.Router.Profiles))
	for _, p := range c.Router.Profiles {
		if p.ID == "" {
			return domain.ConfigErrorf("router.profiles: profile id is required")
		}
		if slices.Contains(ids, p.ID) {
			return domain.ConfigErrorf("router.profiles: duplicate profile %q", p.ID)
		}
		if err := p.Weights.Validate(); err != nil {
			return fmt.Errorf("router.profiles.%s: %w", p.ID, err)
		}
		ids = append(ids, p.ID)
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if _, ok := memory.Preset(c.Scheduler.Preset); !ok {
		return domain.ConfigErrorf("scheduler.preset: unknown preset %q", c.Scheduler.Preset)
	}
	if c.Scheduler.HalfLifeDays < 0 {
		return domain.ConfigErrorf("scheduler.half_life_days must be positive, got %v", c.Scheduler.HalfLifeDays)
	}
	if c.Scheduler.HalfLifeDays == 0 && (c.Scheduler.DecayRate <= 0 || c.Scheduler.DecayRate > 1) {
		return domain.ConfigErrorf("scheduler.decay_rate must be in (0,1], got %v", c.Scheduler.DecayRate)
	}
	if c.Scheduler.RerankWeight < 0 || c.Scheduler.RerankWeight > 1 {
		return domain.ConfigErrorf("scheduler.rerank_weight must be in [0,1], got %v", c.Scheduler.RerankWeight)
	}
	return nil
}

// Seconds converts an integer seconds setting to a duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Millis converts an integer milliseconds setting to a duration.
func Millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func setDefault(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func setDefaultStr(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
