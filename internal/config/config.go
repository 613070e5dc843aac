package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Storage    StorageConfig    `mapstructure:"storage"`
	LLM        ModelConfig      `mapstructure:"llm"`
	Image      ModelConfig      `mapstructure:"image"`
	CrossRef   CrossRefConfig   `mapstructure:"crossref"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Generation GenerationConfig `mapstructure:"generation"`
	Figures    FiguresConfig    `mapstructure:"figures"`
	Render     RenderConfig     `mapstructure:"render"`
	Notify     NotifyConfig     `mapstructure:"notify"`
}

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	CORSOrigins []string `mapstructure:"cors_origins"` // empty allows all
}

// StoreConfig selects the key-value backend holding job records.
type StoreConfig struct {
	Backend  string         `mapstructure:"backend"` // dynamodb, sql, redis, memory
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
	SQL      SQLConfig      `mapstructure:"sql"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type DynamoDBConfig struct {
	Table    string `mapstructure:"table"`
	Index    string `mapstructure:"index"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

type SQLConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	Path            string        `mapstructure:"path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"`
}

// ConnString returns the DSN, deriving one from Path for sqlite.
func (c *SQLConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Driver == "sqlite" || c.Driver == "" {
		// the api and the worker write the same file
		return c.Path + "?_busy_timeout=5000"
	}
	return ""
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // s3, r2, s3compatible, minio
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type CrossRefConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Mailto  string        `mapstructure:"mailto"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WorkerConfig struct {
	ID           string        `mapstructure:"id"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`
	MaxRescans   int           `mapstructure:"max_rescans"`
}

// GenerationConfig holds the depth policy and refinement budget.
type GenerationConfig struct {
	MaxAttempts        int `mapstructure:"max_attempts"`
	MinSections        int `mapstructure:"min_sections"`
	MaxSections        int `mapstructure:"max_sections"`
	MinTotalWords      int `mapstructure:"min_total_words"`
	MinWordsPerSection int `mapstructure:"min_words_per_section"`
	MinReferences      int `mapstructure:"min_references"`
}

type FiguresConfig struct {
	MaxImages  int `mapstructure:"max_images"`
	MinFigures int `mapstructure:"min_figures"`
}

type RenderConfig struct {
	ChromePath     string        `mapstructure:"chrome_path"`
	BrowserTimeout time.Duration `mapstructure:"browser_timeout"`
}

type NotifyConfig struct {
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
}

func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.BindEnv("llm.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.base_url", "OPENAI_BASE_URL")
	v.BindEnv("image.api_key", "OPENAI_API_KEY")
	v.BindEnv("store.backend", "STORE_BACKEND")
	v.BindEnv("store.dynamodb.table", "JOBS_TABLE")
	v.BindEnv("store.dynamodb.index", "JOBS_GSI1_NAME")
	v.BindEnv("store.sql.dsn", "DATABASE_DSN")
	v.BindEnv("store.redis.addr", "REDIS_ADDR")
	v.BindEnv("store.redis.password", "REDIS_PASSWORD")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("render.chrome_path", "CHROME_PATH")
	v.BindEnv("notify.amqp_url", "AMQP_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.LLM.ResolveEnvVars()
	cfg.Image.ResolveEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")

	// api and worker are separate processes; memory is for tests only
	v.SetDefault("store.backend", "sql")
	v.SetDefault("store.dynamodb.table", "coursegen")
	v.SetDefault("store.dynamodb.index", "gsi1")
	v.SetDefault("store.dynamodb.region", "us-east-1")
	v.SetDefault("store.sql.driver", "sqlite")
	v.SetDefault("store.sql.path", "./data/coursegen.db")
	v.SetDefault("store.sql.max_idle_conns", 5)
	v.SetDefault("store.sql.max_open_conns", 10)
	v.SetDefault("store.sql.conn_max_lifetime", "30m")
	v.SetDefault("store.sql.auto_migrate", true)
	v.SetDefault("store.sql.log_level", "warn")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.prefix", "coursegen")

	v.SetDefault("storage.type", "s3")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "coursegen-textbooks")

	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 6000)
	v.SetDefault("image.model", "gpt-image-1")
	v.SetDefault("image.size", "1024x1024")
	v.SetDefault("image.base_url", "https://api.openai.com/v1")
	v.SetDefault("image.timeout", "90s")

	v.SetDefault("crossref.enabled", true)
	v.SetDefault("crossref.base_url", "https://api.crossref.org")
	v.SetDefault("crossref.timeout", "10s")

	v.SetDefault("worker.poll_interval", "5s")
	v.SetDefault("worker.error_backoff", "5s")
	v.SetDefault("worker.max_rescans", 3)

	v.SetDefault("generation.max_attempts", 3)
	v.SetDefault("generation.min_sections", 4)
	v.SetDefault("generation.max_sections", 8)
	v.SetDefault("generation.min_total_words", 1200)
	v.SetDefault("generation.min_words_per_section", 150)
	v.SetDefault("generation.min_references", 3)

	v.SetDefault("figures.max_images", 2)
	v.SetDefault("figures.min_figures", 2)

	v.SetDefault("render.browser_timeout", "60s")

	v.SetDefault("notify.exchange", "coursegen.jobs")
	v.SetDefault("notify.queue", "coursegen.worker")
}

// Validate checks cross-field constraints that defaults cannot express.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "dynamodb", "sql", "redis", "memory":
	default:
		return fmt.Errorf("store: unknown backend %q", c.Store.Backend)
	}
	if c.Generation.MaxAttempts < 1 {
		return fmt.Errorf("generation: max_attempts must be at least 1")
	}
	if c.Generation.MinSections < 1 || c.Generation.MinSections > c.Generation.MaxSections {
		return fmt.Errorf("generation: min_sections must be within [1, max_sections]")
	}
	if c.Figures.MaxImages < 0 {
		return fmt.Errorf("figures: max_images must not be negative")
	}
	return nil
}
