package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

// SlogLevel maps the configured log level onto slog's scale. Unknown values
// fall back to info.
func (t TelemetryConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(t.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	ServiceName string            `yaml:"service_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	Provider    ProviderConfig    `yaml:"provider"`
	Recognizer  RecognizerConfig  `yaml:"recognizer"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer"`
	Client      ClientConfig      `yaml:"client"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type ProviderConfig struct {
	Mode         string  `yaml:"mode"` // mock, ollama, openai, exec
	Endpoint     string  `yaml:"endpoint"`
	APIKey       string  `yaml:"api_key"`
	Command      string  `yaml:"command"`
	Model        string  `yaml:"model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	SystemPrompt string  `yaml:"system_prompt"`
}

type RecognizerConfig struct {
	Mode       string `yaml:"mode"` // mock, exec
	Command    string `yaml:"command"`
	ModelPath  string `yaml:"model_path"`
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
}

type SynthesizerConfig struct {
	Mode          string  `yaml:"mode"` // mock, exec
	Command       string  `yaml:"command"`
	PlayerCommand string  `yaml:"player_command"`
	Voice         string  `yaml:"voice"`
	Language      string  `yaml:"language"`
	Rate          float64 `yaml:"rate"`
	SampleRate    int     `yaml:"sample_rate"`
	Channels      int     `yaml:"channels"`
}

type ClientConfig struct {
	ServerURL      string `yaml:"server_url"`
	RequestTimeout int    `yaml:"request_timeout_ms"`
}

func Default() Config {
	return Config{
		ServiceName: "voxbridge",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Provider: ProviderConfig{
			Mode:         "mock",
			Endpoint:     "http://localhost:11434",
			Model:        "llama3.2:latest",
			MaxTokens:    1024,
			Temperature:  0.7,
			SystemPrompt: "You are a friendly and helpful voice assistant. Keep your answers concise and conversational.",
		},
		Recognizer: RecognizerConfig{
			Mode:       "mock",
			SampleRate: 16000,
			Channels:   1,
		},
		Synthesizer: SynthesizerConfig{
			Mode:       "mock",
			Language:   "en-US",
			Rate:       1.0,
			SampleRate: 22050,
			Channels:   1,
		},
		Client: ClientConfig{
			ServerURL:      "http://localhost:8080",
			RequestTimeout: 120000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "VOX_SERVICE_NAME")
	overrideString(&cfg.Environment, "VOX_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VOX_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VOX_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VOX_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VOX_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VOX_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "VOX_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "VOX_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "VOX_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VOX_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "VOX_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "VOX_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VOX_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VOX_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VOX_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VOX_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VOX_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Provider.Mode, "VOX_PROVIDER_MODE")
	overrideString(&cfg.Provider.Endpoint, "VOX_PROVIDER_ENDPOINT")
	overrideString(&cfg.Provider.APIKey, "VOX_PROVIDER_API_KEY")
	overrideString(&cfg.Provider.Command, "VOX_PROVIDER_COMMAND")
	overrideString(&cfg.Provider.Model, "VOX_PROVIDER_MODEL")
	overrideInt(&cfg.Provider.MaxTokens, "VOX_PROVIDER_MAX_TOKENS")
	overrideFloat(&cfg.Provider.Temperature, "VOX_PROVIDER_TEMPERATURE")
	overrideString(&cfg.Provider.SystemPrompt, "VOX_PROVIDER_SYSTEM_PROMPT")
	overrideString(&cfg.Recognizer.Mode, "VOX_RECOGNIZER_MODE")
	overrideString(&cfg.Recognizer.Command, "VOX_RECOGNIZER_COMMAND")
	overrideString(&cfg.Recognizer.ModelPath, "VOX_RECOGNIZER_MODEL_PATH")
	overrideString(&cfg.Recognizer.Language, "VOX_RECOGNIZER_LANGUAGE")
	overrideInt(&cfg.Recognizer.SampleRate, "VOX_RECOGNIZER_SAMPLE_RATE")
	overrideInt(&cfg.Recognizer.Channels, "VOX_RECOGNIZER_CHANNELS")
	overrideString(&cfg.Synthesizer.Mode, "VOX_SYNTHESIZER_MODE")
	overrideString(&cfg.Synthesizer.Command, "VOX_SYNTHESIZER_COMMAND")
	overrideString(&cfg.Synthesizer.PlayerCommand, "VOX_SYNTHESIZER_PLAYER_COMMAND")
	overrideString(&cfg.Synthesizer.Voice, "VOX_SYNTHESIZER_VOICE")
	overrideString(&cfg.Synthesizer.Language, "VOX_SYNTHESIZER_LANGUAGE")
	overrideFloat(&cfg.Synthesizer.Rate, "VOX_SYNTHESIZER_RATE")
	overrideInt(&cfg.Synthesizer.SampleRate, "VOX_SYNTHESIZER_SAMPLE_RATE")
	overrideInt(&cfg.Synthesizer.Channels, "VOX_SYNTHESIZER_CHANNELS")
	overrideString(&cfg.Client.ServerURL, "VOX_CLIENT_SERVER_URL")
	overrideInt(&cfg.Client.RequestTimeout, "VOX_CLIENT_REQUEST_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	switch cfg.Provider.Mode {
	case "mock", "ollama", "openai", "exec":
	default:
		return errors.New("provider.mode must be one of mock|ollama|openai|exec")
	}
	if cfg.Provider.Mode == "ollama" && cfg.Provider.Endpoint == "" {
		return errors.New("provider.endpoint must be set when mode=ollama")
	}
	if cfg.Provider.Mode == "openai" && cfg.Provider.APIKey == "" {
		return errors.New("provider.api_key must be set when mode=openai")
	}
	if cfg.Provider.Mode == "exec" && cfg.Provider.Command == "" {
		return errors.New("provider.command must be set when mode=exec")
	}
	if cfg.Provider.MaxTokens < 0 {
		return errors.New("provider.max_tokens must be >= 0")
	}
	switch cfg.Recognizer.Mode {
	case "mock", "exec":
	default:
		return errors.New("recognizer.mode must be one of mock|exec")
	}
	if cfg.Recognizer.Mode == "exec" && cfg.Recognizer.Command == "" {
		return errors.New("recognizer.command must be set when mode=exec")
	}
	if cfg.Recognizer.SampleRate <= 0 {
		return errors.New("recognizer.sample_rate must be positive")
	}
	if cfg.Recognizer.Channels <= 0 {
		return errors.New("recognizer.channels must be positive")
	}
	switch cfg.Synthesizer.Mode {
	case "mock", "exec":
	default:
		return errors.New("synthesizer.mode must be one of mock|exec")
	}
	if cfg.Synthesizer.Mode == "exec" && cfg.Synthesizer.Command == "" {
		return errors.New("synthesizer.command must be set when mode=exec")
	}
	if cfg.Synthesizer.SampleRate <= 0 {
		return errors.New("synthesizer.sample_rate must be positive")
	}
	if cfg.Synthesizer.Channels <= 0 {
		return errors.New("synthesizer.channels must be positive")
	}
	if cfg.Synthesizer.Rate <= 0 {
		return errors.New("synthesizer.rate must be positive")
	}
	if cfg.Client.ServerURL == "" {
		return errors.New("client.server_url must not be empty")
	}
	return nil
}
