package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/ncecere/voiceclone/internal/languages"
)

// Engine kinds understood by the synth factory.
const (
	EngineCommand     = "command"
	EngineXTTSServer  = "xtts-server"
	EngineOpenAI      = "openai"
	DefaultModelName  = "tts_models/multilingual/multi-dataset/xtts_v2"
	DefaultModelAlias = "xtts_v2"
)

// Config captures the runtime configuration for the voice clone service and CLIs.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Engine        EngineConfig        `mapstructure:"engine"`
	Languages     LanguagesConfig     `mapstructure:"languages"`
	Recording     RecordingConfig     `mapstructure:"recording"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Cache         CacheConfig         `mapstructure:"cache"`
	RateLimits    RateLimitConfig     `mapstructure:"rate_limits"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Log           LogConfig           `mapstructure:"log"`
}

type ServerConfig struct {
	ListenAddr            string        `mapstructure:"listen_addr"`
	BodyLimitMB           int           `mapstructure:"body_limit_mb"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	WriteTimeout          time.Duration `mapstructure:"write_timeout"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
	ProxyHeader           string        `mapstructure:"proxy_header"`
}

// EngineConfig selects and tunes the external XTTS runtime.
type EngineConfig struct {
	Kind           string        `mapstructure:"kind"`
	Model          string        `mapstructure:"model"`
	ModelAlias     string        `mapstructure:"model_alias"`
	Timeout        time.Duration `mapstructure:"timeout"`
	WarmTimeout    time.Duration `mapstructure:"warm_timeout"`
	HealthInterval time.Duration `mapstructure:"health_interval"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	Command        CommandConfig `mapstructure:"command"`
	XTTSServer     XTTSConfig    `mapstructure:"xtts_server"`
	OpenAI         OpenAIConfig  `mapstructure:"openai"`
}

type CommandConfig struct {
	Binary  string   `mapstructure:"binary"`
	UseCUDA bool     `mapstructure:"use_cuda"`
	TempDir string   `mapstructure:"temp_dir"`
	Args    []string `mapstructure:"args"`
}

type XTTSConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	SpeechPath string `mapstructure:"speech_path"`
	HealthPath string `mapstructure:"health_path"`
}

type OpenAIConfig struct {
	BaseURL string  `mapstructure:"base_url"`
	APIKey  string  `mapstructure:"api_key"`
	Model   string  `mapstructure:"model"`
	Speed   float64 `mapstructure:"speed"`
}

type LanguagesConfig struct {
	Default string `mapstructure:"default"`
}

type RecordingConfig struct {
	Duration   time.Duration `mapstructure:"duration"`
	SampleRate int           `mapstructure:"sample_rate"`
	Channels   int           `mapstructure:"channels"`
	Output     string        `mapstructure:"output"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxMB   int           `mapstructure:"max_mb"`
}

type RateLimitConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	RequestsPerMinute   int  `mapstructure:"requests_per_minute"`
	ParallelRequests    int  `mapstructure:"parallel_requests"`
	CharactersPerMinute int  `mapstructure:"characters_per_minute"`
}

type StorageConfig struct {
	Enabled       bool               `mapstructure:"enabled"`
	Backend       string             `mapstructure:"backend"`
	EncryptionKey string             `mapstructure:"encryption_key"`
	Local         StorageLocalConfig `mapstructure:"local"`
	S3            StorageS3Config    `mapstructure:"s3"`
}

type StorageLocalConfig struct {
	Directory string `mapstructure:"directory"`
}

type StorageS3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	URL             string        `mapstructure:"url"`
	RunMigrations   bool          `mapstructure:"run_migrations"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type ObservabilityConfig struct {
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	EnableOTLP    bool   `mapstructure:"enable_otlp"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else if cfg := os.Getenv("VOICECLONE_CONFIG_FILE"); cfg != "" {
		v.SetConfigFile(cfg)
		explicitFile = true
	}

	if !explicitFile {
		v.SetConfigName("voiceclone")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("VOICECLONE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(timeStringToDurationHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures required values are set and fills derived defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		c.Server.ListenAddr = "127.0.0.1:5000"
	}
	if c.Server.BodyLimitMB <= 0 {
		c.Server.BodyLimitMB = 1
	}
	if c.Server.GracefulShutdownDelay <= 0 {
		c.Server.GracefulShutdownDelay = 5 * time.Second
	}

	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Recording.validate(); err != nil {
		return err
	}

	c.Languages.Default = strings.ToLower(strings.TrimSpace(c.Languages.Default))
	if c.Languages.Default == "" {
		c.Languages.Default = string(languages.Default)
	}
	lang, ok := languages.Lookup(c.Languages.Default)
	if !ok {
		return fmt.Errorf("languages.default %q is not a supported language", c.Languages.Default)
	}
	c.Languages.Default = string(lang.Code)

	redisConfigured := strings.TrimSpace(c.Redis.URL) != ""
	if c.Redis.PoolSize < 0 {
		return fmt.Errorf("redis.pool_size must be >= 0")
	}
	if c.Cache.Enabled && !redisConfigured {
		return fmt.Errorf("cache.enabled requires redis.url")
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 24 * time.Hour
	}
	if c.Cache.MaxMB <= 0 {
		c.Cache.MaxMB = 16
	}
	if c.RateLimits.Enabled && !redisConfigured {
		return fmt.Errorf("rate_limits.enabled requires redis.url")
	}
	if c.RateLimits.RequestsPerMinute < 0 || c.RateLimits.ParallelRequests < 0 || c.RateLimits.CharactersPerMinute < 0 {
		return fmt.Errorf("rate_limits values must be >= 0")
	}

	if err := c.Storage.validate(); err != nil {
		return err
	}

	if c.Database.Enabled && strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("database.url must be provided when database.enabled is true")
	}
	if c.Database.MaxConns < 0 {
		return fmt.Errorf("database.max_conns must be >= 0")
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch c.Log.Level {
	case "", "info":
		c.Log.Level = "info"
	case "debug", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format != "json" {
		c.Log.Format = "text"
	}
	return nil
}

func (e *EngineConfig) validate() error {
	e.Kind = strings.ToLower(strings.TrimSpace(e.Kind))
	switch e.Kind {
	case "":
		e.Kind = EngineCommand
	case EngineCommand, EngineXTTSServer, EngineOpenAI:
	default:
		return fmt.Errorf("engine.kind must be one of %s, %s, %s", EngineCommand, EngineXTTSServer, EngineOpenAI)
	}
	if strings.TrimSpace(e.Model) == "" {
		e.Model = DefaultModelName
	}
	if strings.TrimSpace(e.ModelAlias) == "" {
		e.ModelAlias = DefaultModelAlias
	}
	if e.Timeout <= 0 {
		e.Timeout = 5 * time.Minute
	}
	if e.WarmTimeout <= 0 {
		e.WarmTimeout = time.Minute
	}
	if e.MaxConcurrency <= 0 {
		e.MaxConcurrency = 1
	}
	if e.HealthInterval < 0 {
		return fmt.Errorf("engine.health_interval must be >= 0")
	}
	switch e.Kind {
	case EngineCommand:
		if strings.TrimSpace(e.Command.Binary) == "" {
			e.Command.Binary = "tts"
		}
	case EngineXTTSServer:
		if strings.TrimSpace(e.XTTSServer.BaseURL) == "" {
			return fmt.Errorf("engine.xtts_server.base_url must be provided for the xtts-server engine")
		}
		if e.XTTSServer.SpeechPath == "" {
			e.XTTSServer.SpeechPath = "/tts_to_audio/"
		}
		if e.XTTSServer.HealthPath == "" {
			e.XTTSServer.HealthPath = "/speakers_list"
		}
	case EngineOpenAI:
		if strings.TrimSpace(e.OpenAI.BaseURL) == "" {
			return fmt.Errorf("engine.openai.base_url must be provided for the openai engine")
		}
		if e.OpenAI.Model == "" {
			e.OpenAI.Model = "tts-1-hd"
		}
		if e.OpenAI.Speed < 0 || e.OpenAI.Speed > 4 {
			return fmt.Errorf("engine.openai.speed must be between 0 and 4")
		}
	}
	return nil
}

func (r *RecordingConfig) validate() error {
	if r.Duration <= 0 {
		r.Duration = 30 * time.Second
	}
	if r.SampleRate <= 0 {
		r.SampleRate = 44100
	}
	if r.Channels <= 0 {
		r.Channels = 1
	}
	if r.Channels > 2 {
		return fmt.Errorf("recording.channels must be 1 or 2")
	}
	if strings.TrimSpace(r.Output) == "" {
		r.Output = "voice.wav"
	}
	return nil
}

func (s *StorageConfig) validate() error {
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	if s.Backend == "" {
		s.Backend = "local"
	}
	switch s.Backend {
	case "local":
		if strings.TrimSpace(s.Local.Directory) == "" {
			s.Local.Directory = "./data/outputs"
		}
	case "s3":
		if s.Enabled && strings.TrimSpace(s.S3.Bucket) == "" {
			return fmt.Errorf("storage.s3.bucket must be provided for s3 storage")
		}
		if (s.S3.AccessKeyID == "") != (s.S3.SecretAccessKey == "") {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key must be set together")
		}
	default:
		return fmt.Errorf("storage.backend must be local or s3")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", "127.0.0.1:5000")
	v.SetDefault("server.body_limit_mb", 1)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.graceful_shutdown_delay", "5s")
	v.SetDefault("server.proxy_header", "")

	v.SetDefault("engine.kind", EngineCommand)
	v.SetDefault("engine.model", DefaultModelName)
	v.SetDefault("engine.model_alias", DefaultModelAlias)
	v.SetDefault("engine.timeout", "5m")
	v.SetDefault("engine.warm_timeout", "60s")
	v.SetDefault("engine.health_interval", "1m")
	v.SetDefault("engine.max_concurrency", 1)
	v.SetDefault("engine.command.binary", "tts")
	v.SetDefault("engine.command.use_cuda", false)
	v.SetDefault("engine.command.temp_dir", "")
	v.SetDefault("engine.command.args", []string{})
	v.SetDefault("engine.xtts_server.base_url", "")
	v.SetDefault("engine.xtts_server.speech_path", "/tts_to_audio/")
	v.SetDefault("engine.xtts_server.health_path", "/speakers_list")
	v.SetDefault("engine.openai.base_url", "")
	v.SetDefault("engine.openai.api_key", "")
	v.SetDefault("engine.openai.model", "tts-1-hd")
	v.SetDefault("engine.openai.speed", 1.0)

	v.SetDefault("languages.default", "en")

	v.SetDefault("recording.duration", "30s")
	v.SetDefault("recording.sample_rate", 44100)
	v.SetDefault("recording.channels", 1)
	v.SetDefault("recording.output", "voice.wav")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.max_mb", 16)

	v.SetDefault("rate_limits.enabled", false)
	v.SetDefault("rate_limits.requests_per_minute", 30)
	v.SetDefault("rate_limits.parallel_requests", 2)
	v.SetDefault("rate_limits.characters_per_minute", 0)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.encryption_key", "")
	v.SetDefault("storage.local.directory", "./data/outputs")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.url", "")
	v.SetDefault("database.run_migrations", true)
	v.SetDefault("database.max_conns", 5)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("observability.enable_otlp", false)
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.otlp_endpoint", "http://localhost:4317")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
