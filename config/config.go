package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del sentinel.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Market   MarketConfig   `yaml:"market"`
	Policy   PolicyConfig   `yaml:"policy"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig controla el API HTTP.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"SENTINEL_ADDR"`
	StreamInterval  time.Duration `yaml:"stream_interval" env:"SENTINEL_STREAM_INTERVAL"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SENTINEL_SHUTDOWN_TIMEOUT"`
}

// PipelineConfig apunta al API de chat compatible con OpenAI.
type PipelineConfig struct {
	BaseURL     string        `yaml:"base_url" env:"PIPELINE_BASE_URL"`
	APIKey      string        `yaml:"-" env:"PIPELINE_API_KEY"` // solo por entorno
	Model       string        `yaml:"model" env:"PIPELINE_MODEL"`
	Temperature float64       `yaml:"temperature" env:"PIPELINE_TEMPERATURE"`
	Timeout     time.Duration `yaml:"request_timeout" env:"PIPELINE_REQUEST_TIMEOUT"` // por llamada HTTP
	RatePerSec  float64       `yaml:"rate_per_sec" env:"PIPELINE_RATE_PER_SEC"`
	DryRun      bool          `yaml:"dry_run" env:"PIPELINE_DRY_RUN"` // usa el fixture offline
}

// MarketConfig controla el mercado simulado. Los valores a cero usan los
// defaults del simulador.
type MarketConfig struct {
	Pair                 string        `yaml:"pair" env:"MARKET_PAIR"`
	InitialVolatilePrice float64       `yaml:"initial_volatile_price"`
	InitialStablePrice   float64       `yaml:"initial_stable_price"`
	TickInterval         time.Duration `yaml:"tick_interval" env:"MARKET_TICK_INTERVAL"`
	SettleDelay          time.Duration `yaml:"settle_delay" env:"MARKET_SETTLE_DELAY"`
	MaxTrades            int           `yaml:"max_trades"`
	RecentTrades         int           `yaml:"recent_trades"`
	BaseNotionalUSD      float64       `yaml:"base_notional_usd"`
}

// PolicyConfig agrupa los umbrales de decisión.
type PolicyConfig struct {
	PipelineTimeout    time.Duration `yaml:"pipeline_timeout" env:"POLICY_PIPELINE_TIMEOUT"`
	TradeMinConfidence int           `yaml:"trade_min_confidence" env:"POLICY_TRADE_MIN_CONFIDENCE"` // gate del orquestador
	SimMinConfidence   int           `yaml:"sim_min_confidence"`                                     // gate del simulador
	SimMinQuality      int           `yaml:"sim_min_quality"`
	MaxCommissionPct   float64       `yaml:"max_commission_pct" env:"POLICY_MAX_COMMISSION_PCT"`
}

// LedgerConfig controla el historial de tips.
type LedgerConfig struct {
	Capacity int `yaml:"capacity" env:"LEDGER_CAPACITY"`
}

// StorageConfig controla el journal de ejecuciones del pipeline.
type StorageConfig struct {
	Path      string        `yaml:"path" env:"STORAGE_PATH"` // ruta al archivo SQLite, o ":memory:"
	Retention time.Duration `yaml:"retention"`
	MaxRows   int           `yaml:"max_rows"`
}

// TelegramConfig habilita las notificaciones de trades liquidados.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" env:"TELEGRAM_ENABLED"`
	Token   string `yaml:"-" env:"TELEGRAM_BOT_TOKEN"`
	ChatID  int64  `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // debug | info | warn | error
	Format string `yaml:"format" env:"LOG_FORMAT"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben el YAML. Un path vacío usa solo
// entorno y defaults. Load no valida: cmd aplica los flags y llama a Validate.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse env: %w", err)
	}
	setDefaults(&cfg)

	return &cfg, nil
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":3001"
	}
	if cfg.Server.StreamInterval <= 0 {
		cfg.Server.StreamInterval = 2 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Pipeline.BaseURL == "" {
		cfg.Pipeline.BaseURL = "https://api.openai.com"
	}
	if cfg.Pipeline.Model == "" {
		cfg.Pipeline.Model = "gpt-4o-mini"
	}
	if cfg.Pipeline.Timeout <= 0 {
		cfg.Pipeline.Timeout = 60 * time.Second
	}
	if cfg.Pipeline.RatePerSec <= 0 {
		cfg.Pipeline.RatePerSec = 2
	}
	if cfg.Policy.PipelineTimeout <= 0 {
		cfg.Policy.PipelineTimeout = 90 * time.Second
	}
	if cfg.Policy.TradeMinConfidence <= 0 {
		cfg.Policy.TradeMinConfidence = 50
	}
	if cfg.Policy.SimMinConfidence <= 0 {
		cfg.Policy.SimMinConfidence = 50
	}
	if cfg.Policy.SimMinQuality <= 0 {
		cfg.Policy.SimMinQuality = 30
	}
	if cfg.Policy.MaxCommissionPct <= 0 {
		cfg.Policy.MaxCommissionPct = 15
	}
	if cfg.Ledger.Capacity <= 0 {
		cfg.Ledger.Capacity = 100
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = ":memory:"
	}
	if cfg.Storage.Retention <= 0 {
		cfg.Storage.Retention = 7 * 24 * time.Hour
	}
	if cfg.Storage.MaxRows <= 0 {
		cfg.Storage.MaxRows = 10_000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate comprueba la configuración ya con flags aplicados.
func (c *Config) Validate() error {
	var errs []error

	if !c.Pipeline.DryRun && c.Pipeline.APIKey == "" {
		errs = append(errs, errors.New("pipeline: PIPELINE_API_KEY is required unless dry_run is set"))
	}
	if c.Pipeline.Temperature < 0 || c.Pipeline.Temperature > 2 {
		errs = append(errs, fmt.Errorf("pipeline: temperature must be in [0, 2], got %g", c.Pipeline.Temperature))
	}
	if c.Policy.TradeMinConfidence > 100 || c.Policy.SimMinConfidence > 100 || c.Policy.SimMinQuality > 100 {
		errs = append(errs, errors.New("policy: confidence and quality thresholds must be in [0, 100]"))
	}
	if c.Policy.MaxCommissionPct > 15 {
		errs = append(errs, fmt.Errorf("policy: max_commission_pct must be at most 15, got %g", c.Policy.MaxCommissionPct))
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		errs = append(errs, errors.New("telegram: TELEGRAM_BOT_TOKEN and chat_id are required when enabled"))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Errorf("log: invalid level %q", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log: invalid format %q", c.Log.Format))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}
	return nil
}
