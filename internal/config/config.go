package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env
// var with _FILE suffix. If FOO is already set directly, the file is
// skipped. If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Generation GenerationConfig
	RateLimit  RateLimitConfig
	Gemini     GeminiConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string
}

type GenerationConfig struct {
	OutputDir         string
	DefaultIterations int
	MockStepDelayMs   int // simulated step duration when running without an API key
}

type RateLimitConfig struct {
	GeneratePerMin int
}

type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	VLMModel   string
	ImageModel string
}

func Load() (*Config, error) {
	// .env first, so both viper and _FILE handling see its values
	_ = godotenv.Load()

	readSecret("GEMINI_API_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.log_format", "LOG_FORMAT")
	_ = viper.BindEnv("generation.output_dir", "GENERATION_OUTPUT_DIR")
	_ = viper.BindEnv("generation.default_iterations", "GENERATION_DEFAULT_ITERATIONS")
	_ = viper.BindEnv("generation.mock_step_delay_ms", "GENERATION_MOCK_STEP_DELAY_MS")
	_ = viper.BindEnv("ratelimit.generate_per_min", "RATELIMIT_GENERATE_PER_MIN")
	_ = viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = viper.BindEnv("gemini.base_url", "GEMINI_BASE_URL")
	_ = viper.BindEnv("gemini.vlm_model", "GEMINI_VLM_MODEL")
	_ = viper.BindEnv("gemini.image_model", "GEMINI_IMAGE_MODEL")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.log_format", "console")
	viper.SetDefault("generation.output_dir", "output")
	viper.SetDefault("generation.default_iterations", 3)
	viper.SetDefault("generation.mock_step_delay_ms", 500)
	viper.SetDefault("ratelimit.generate_per_min", 10)

	// Gemini defaults
	viper.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("gemini.vlm_model", "gemini-2.0-flash")
	viper.SetDefault("gemini.image_model", "gemini-2.0-flash-exp-image-generation")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			LogFormat: viper.GetString("server.log_format"),
		},
		Generation: GenerationConfig{
			OutputDir:         viper.GetString("generation.output_dir"),
			DefaultIterations: viper.GetInt("generation.default_iterations"),
			MockStepDelayMs:   viper.GetInt("generation.mock_step_delay_ms"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerMin: viper.GetInt("ratelimit.generate_per_min"),
		},
		Gemini: GeminiConfig{
			APIKey:     viper.GetString("gemini.api_key"),
			BaseURL:    viper.GetString("gemini.base_url"),
			VLMModel:   viper.GetString("gemini.vlm_model"),
			ImageModel: viper.GetString("gemini.image_model"),
		},
	}

	return cfg, nil
}
