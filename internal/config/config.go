package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is shared by the backend daemon and the desktop agent; each
// binary reads the sections it needs.
type Config struct {
	Env         string `yaml:"env" env:"TIMECLOCK_ENV" env-default:"local"`
	StoragePath string `yaml:"storage_path" env:"TIMECLOCK_STORAGE_PATH" env-default:"timeclock.db"`

	Log struct {
		Level  string `yaml:"level" env:"TIMECLOCK_LOG_LEVEL" env-default:"info"`
		Format string `yaml:"format" env:"TIMECLOCK_LOG_FORMAT" env-default:"json"`
	} `yaml:"log"`

	Server struct {
		Host string `yaml:"host" env:"TIMECLOCK_SERVER_HOST" env-default:"localhost"`
		Port int    `yaml:"port" env:"TIMECLOCK_SERVER_PORT" env-default:"8720"`
	} `yaml:"server"`

	Backend struct {
		BaseURL string `yaml:"base_url" env:"TIMECLOCK_BACKEND_URL" env-default:"http://localhost:8720"`
		APIKey  string `yaml:"api_key" env:"TIMECLOCK_API_KEY"`
		Timeout int    `yaml:"timeout" env-default:"30"` // seconds
	} `yaml:"backend"`

	Agent struct {
		UserID               int64 `yaml:"user_id" env:"TIMECLOCK_USER_ID"`
		IdlePollInterval     int   `yaml:"idle_poll_interval" env-default:"1"`      // seconds
		AwayThreshold        int   `yaml:"away_threshold" env-default:"60"`         // seconds
		ScreenshotMinMinutes int   `yaml:"screenshot_min_minutes" env-default:"5"`  // inclusive
		ScreenshotMaxMinutes int   `yaml:"screenshot_max_minutes" env-default:"10"` // exclusive
		QueueRetryInterval   int   `yaml:"queue_retry_interval" env-default:"60"`   // seconds
	} `yaml:"agent"`

	Tracking struct {
		DefaultAutoStopMinutes int `yaml:"default_auto_stop_minutes" env-default:"30"`
	} `yaml:"tracking"`

	Report struct {
		SendHour   int     `yaml:"send_hour" env-default:"7"` // local wall-clock hour
		HourlyRate float64 `yaml:"hourly_rate" env-default:"0"`
		Currency   string  `yaml:"currency" env-default:"USD"`
	} `yaml:"report"`

	SMTP struct {
		Host     string `yaml:"host" env:"TIMECLOCK_SMTP_HOST"`
		Port     int    `yaml:"port" env-default:"587"`
		Username string `yaml:"username" env:"TIMECLOCK_SMTP_USERNAME"`
		Password string `yaml:"password" env:"TIMECLOCK_SMTP_PASSWORD"`
		From     string `yaml:"from" env-default:"reports@timeclock.local"`
	} `yaml:"smtp"`
}

// LoadConfig reads the YAML file at path and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return &cfg, nil
}
