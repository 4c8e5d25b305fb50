package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ClientConfig configures settingsctl. It lives in ~/.replydesk/client.yaml.
type ClientConfig struct {
	APIBase  string `yaml:"api_base"`
	LogLevel string `yaml:"log_level"`
	Timeout  int    `yaml:"timeout_seconds"`
}

// Credentials holds the session token issued by /login.
type Credentials struct {
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		APIBase:  "http://localhost:8080/api",
		LogLevel: "warn",
		Timeout:  30,
	}
}

// ClientDir returns the directory holding client.yaml and credentials.yaml.
func ClientDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv("REPLYDESK_DIR")); v != "" {
		return v, nil
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(h, ".replydesk"), nil
}

func clientFile(name string) (string, error) {
	d, err := ClientDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, name), nil
}

func LoadClientConfig() (ClientConfig, error) {
	cfg := DefaultClientConfig()

	p, err := clientFile("client.yaml")
	if err != nil {
		return ClientConfig{}, err
	}
	if b, err := os.ReadFile(p); err == nil {
		var onDisk ClientConfig
		if err := yaml.Unmarshal(b, &onDisk); err != nil {
			return ClientConfig{}, fmt.Errorf("parse %s: %w", p, err)
		}
		if v := strings.TrimSpace(onDisk.APIBase); v != "" {
			cfg.APIBase = strings.TrimRight(v, "/")
		}
		if v := strings.TrimSpace(onDisk.LogLevel); v != "" {
			cfg.LogLevel = v
		}
		if onDisk.Timeout > 0 {
			cfg.Timeout = onDisk.Timeout
		}
	}

	if v := strings.TrimSpace(os.Getenv("REPLYDESK_API_BASE")); v != "" {
		cfg.APIBase = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv("REPLYDESK_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}

	if cfg.APIBase == "" {
		return ClientConfig{}, errors.New("api_base is empty")
	}
	return cfg, nil
}

// LoadCredentials reads the stored session. REPLYDESK_TOKEN wins over the file.
func LoadCredentials() (Credentials, error) {
	if v := strings.TrimSpace(os.Getenv("REPLYDESK_TOKEN")); v != "" {
		return Credentials{Token: v}, nil
	}
	p, err := clientFile("credentials.yaml")
	if err != nil {
		return Credentials{}, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return Credentials{}, err
	}
	var c Credentials
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Credentials{}, fmt.Errorf("parse %s: %w", p, err)
	}
	return c, nil
}

func SaveCredentials(c Credentials) error {
	d, err := ClientDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d, "credentials.yaml"), b, 0o600)
}

func ClearCredentials() error {
	p, err := clientFile("credentials.yaml")
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
