package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          int
	NatsURL       string
	NatsToken     string
	DatabaseURL   string
	LogLevel      string
	SlackBotToken string
	SlackChannel  string
	APIToken      string
	Studies       []string
	SnoozeSeconds int
	ConfigFile    string
	StateFile     string
}

func Load() Config {
	return Config{
		Port:          envInt("QQC_PORT", 8760),
		NatsURL:       envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:     envStr("NATS_TOKEN", ""),
		DatabaseURL:   envStr("DATABASE_URL", ""),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_QQC_CHANNEL", ""),
		APIToken:      envStr("QQC_API_TOKEN", ""),
		Studies:       envList("QQC_STUDIES"),
		SnoozeSeconds: envInt("SNOOZE_TIME_SECONDS", 900),
		ConfigFile:    envStr("QQC_CONFIG", ""),
		StateFile:     envStr("QQC_STATE_FILE", ""),
	}
}

// fileConfig is the optional YAML file named by QQC_CONFIG. Values set in
// the file take precedence over the environment.
type fileConfig struct {
	Studies       []string `yaml:"studies"`
	Orchestration struct {
		SnoozeTimeSeconds *int `yaml:"snooze_time_seconds"`
	} `yaml:"orchestration"`
	Notifications struct {
		SlackChannel string `yaml:"slack_channel"`
	} `yaml:"notifications"`
}

// ApplyFile overlays the YAML file at path onto c.
func (c *Config) ApplyFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	if err := yaml.NewDecoder(f).Decode(&fc); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	if len(fc.Studies) > 0 {
		c.Studies = fc.Studies
	}
	if fc.Orchestration.SnoozeTimeSeconds != nil {
		c.SnoozeSeconds = *fc.Orchestration.SnoozeTimeSeconds
	}
	if fc.Notifications.SlackChannel != "" {
		c.SlackChannel = fc.Notifications.SlackChannel
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
