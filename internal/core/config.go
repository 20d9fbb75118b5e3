package core

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator"
	"github.com/jo-hoe/melonripe/internal/backend/imageprocessing"
	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "config.yaml"

// CommandConfig represents a generic command configuration
type CommandConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type Database struct {
	Type             string `yaml:"type" validate:"oneof=sqlite postgres mysql"`
	ConnectionString string `yaml:"connectionString" validate:"required"`
}

type Model struct {
	Path string `yaml:"path" validate:"required"`
}

type Cache struct {
	Type     string        `yaml:"type" validate:"oneof=none redis"`
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"min=0"`
	TTL      time.Duration `yaml:"ttl" validate:"min=0"`
}

// Chrome describes the browser status bar look applied once at startup.
type Chrome struct {
	OverlaysWebView bool   `yaml:"overlaysWebView"`
	Style           string `yaml:"style" validate:"oneof=light dark"`
	BackgroundColor string `yaml:"backgroundColor" validate:"hexcolor"`
}

type ServiceConfig struct {
	Port           int             `yaml:"port" validate:"min=1,max=65535"`
	LogLevel       string          `yaml:"logLevel" validate:"oneof=debug info warn error"`
	Database       Database        `yaml:"database"`
	Model          Model           `yaml:"model"`
	ImageDir       string          `yaml:"imageDir" validate:"required"`
	ThumbnailWidth int             `yaml:"thumbnailWidth" validate:"min=16,max=2048"`
	Cache          Cache           `yaml:"cache"`
	Chrome         Chrome          `yaml:"chrome"`
	Commands       []CommandConfig `yaml:"commands"`
}

// DefaultConfig is what an empty config file yields.
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:     8080,
		LogLevel: "info",
		Database: Database{
			Type:             "sqlite",
			ConnectionString: "melonripe.db",
		},
		Model: Model{
			Path: "model/melon.yaml",
		},
		ImageDir:       "data/images",
		ThumbnailWidth: 160,
		Cache: Cache{
			Type: "none",
			TTL:  24 * time.Hour,
		},
		Chrome: Chrome{
			OverlaysWebView: false,
			Style:           "light",
			BackgroundColor: "#2e7d32",
		},
		Commands: []CommandConfig{
			{Name: "PngConverterCommand"},
			{Name: "CropCommand", Params: map[string]any{"mode": "square"}},
		},
	}
}

// ConfigPath returns CONFIG_PATH if set and the default path otherwise.
func ConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return DefaultConfigPath
}

// LoadConfig loads configuration from the specified YAML file on top of DefaultConfig
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return config, nil
}

func (c *ServiceConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Cache.Type == "redis" && c.Cache.Address == "" {
		return errors.New("cache.address is required for the redis cache")
	}
	if err := validateCommands(c.Commands); err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}
	return nil
}

// ImageCommands converts the configured commands for the preprocessing pipeline.
func (c *ServiceConfig) ImageCommands() []imageprocessing.CommandConfig {
	configs := make([]imageprocessing.CommandConfig, len(c.Commands))
	for i, cmd := range c.Commands {
		configs[i] = imageprocessing.CommandConfig{Name: cmd.Name, Params: cmd.Params}
	}
	return configs
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		if !imageprocessing.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("unknown command: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true
	}

	return nil
}
