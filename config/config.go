// Package config loads the runtime configuration from the environment. A
// local .env file, if present, is merged in first so development setups do
// not need exported variables.
package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full runtime configuration. Provider API keys read by the
// vendor SDKs themselves (OPENAI_API_KEY, ANTHROPIC_API_KEY) are not
// duplicated here.
type Config struct {
	Addr      string `envconfig:"ADDR" default:":8000"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// ModelProvider selects the generation backend: "openai" or "anthropic".
	ModelProvider string `envconfig:"MODEL_PROVIDER" default:"openai"`
	ModelName     string `envconfig:"MODEL_NAME"`

	MaxIterations      int `envconfig:"MAX_ITERATIONS" default:"5"`
	MaxSupervisorTurns int `envconfig:"MAX_SUPERVISOR_TURNS" default:"1"`

	YouTubeAPIKey       string `envconfig:"YOUTUBE_API_KEY"`
	SpotifyClientID     string `envconfig:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET"`
	TwitterAPIKey       string `envconfig:"X_API_KEY"`
	TwitterAPISecret    string `envconfig:"X_API_SECRET"`
	TwitterAccessToken  string `envconfig:"X_API_AUTH_ACCESS_TOKEN"`
	TwitterAccessSecret string `envconfig:"X_API_AUTH_ACCESS_SECRET"`
}

// Load reads .env (ignored when absent) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
