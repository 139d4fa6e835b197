package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the server's yaml-file configuration. Environment variables
// override file values (PORT, CONTENT_DIR, NATS_URL).
type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Content struct {
		Dir string `yaml:"dir"`
	} `yaml:"content"`
	Relay struct {
		NATSURL string `yaml:"nats_url"`
	} `yaml:"relay"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	config := &Config{}
	config.Server.Port = "3000"
	config.Content.Dir = "content"

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.Content.Dir = getEnv("CONTENT_DIR", config.Content.Dir)
	config.Relay.NATSURL = getEnv("NATS_URL", config.Relay.NATSURL)

	return config, nil
}
