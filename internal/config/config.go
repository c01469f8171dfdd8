// Package config loads the simulator configuration from defaults, an
// optional config file, BOOTSIM_ environment variables and command flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/moffa90/go-sdboot/flash"
	"github.com/moffa90/go-sdboot/storage"
)

// EnvPrefix prefixes every environment override, e.g. BOOTSIM_FLASH_FILE.
const EnvPrefix = "BOOTSIM"

// Config is the complete simulator configuration.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	Storage StorageConfig `mapstructure:"storage"`
	Images  ImagesConfig  `mapstructure:"images"`
	Flash   FlashConfig   `mapstructure:"flash"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// StorageConfig describes the directory standing in for the SD card.
type StorageConfig struct {
	Root         string        `mapstructure:"root"`
	Drive        string        `mapstructure:"drive"`
	MountRetries uint64        `mapstructure:"mount_retries"`
	MountBackoff time.Duration `mapstructure:"mount_backoff"`
}

// ImagesConfig names the files on the card.
type ImagesConfig struct {
	Primary string `mapstructure:"primary"`
	Golden  string `mapstructure:"golden"`
	Marker  string `mapstructure:"marker"`
}

// FlashConfig describes the file standing in for program memory.
type FlashConfig struct {
	File        string `mapstructure:"file"`
	LoadAddress uint32 `mapstructure:"load_address"`
	Size        uint32 `mapstructure:"size"`
	PageSize    uint32 `mapstructure:"page_size"`
	ChunkSize   uint32 `mapstructure:"chunk_size"`
}

// MetricsConfig controls the metrics textfile written after a boot.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	v.SetDefault("storage.root", "sdcard")
	v.SetDefault("storage.drive", storage.DefaultDrive)
	v.SetDefault("storage.mount_retries", 3)
	v.SetDefault("storage.mount_backoff", 100*time.Millisecond)

	v.SetDefault("images.primary", storage.PrimaryImage)
	v.SetDefault("images.golden", storage.GoldenImage)
	v.SetDefault("images.marker", storage.UpdateMarker)

	v.SetDefault("flash.file", "flash.bin")
	v.SetDefault("flash.load_address", flash.DefaultLoadAddress)
	v.SetDefault("flash.size", flash.DefaultFlashSize)
	v.SetDefault("flash.page_size", flash.DefaultPageSize)
	v.SetDefault("flash.chunk_size", flash.DefaultChunkSize)

	v.SetDefault("metrics.textfile", "")
}

// Load reads the configuration into a Config. When path is empty a
// "bootsim" config file is looked up in the working directory and its
// absence is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("bootsim")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Geometry returns the flash geometry described by the configuration.
func (c *Config) Geometry() flash.Geometry {
	return flash.Geometry{
		LoadAddress: c.Flash.LoadAddress,
		RegionSize:  c.Flash.Size - min(c.Flash.LoadAddress, c.Flash.Size),
		PageSize:    c.Flash.PageSize,
		ChunkSize:   c.Flash.ChunkSize,
	}
}

// Validate checks that the configuration describes a usable setup.
func (c *Config) Validate() error {
	var problems []string

	if c.Storage.Root == "" {
		problems = append(problems, "storage.root is required")
	}
	if c.Storage.Drive == "" {
		problems = append(problems, "storage.drive is required")
	}
	if c.Storage.MountBackoff <= 0 {
		problems = append(problems, "storage.mount_backoff must be positive")
	}
	if c.Flash.File == "" {
		problems = append(problems, "flash.file is required")
	}
	if c.Flash.LoadAddress >= c.Flash.Size {
		problems = append(problems, fmt.Sprintf("flash.load_address 0x%X is beyond flash.size 0x%X", c.Flash.LoadAddress, c.Flash.Size))
	} else if err := c.Geometry().Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	names := map[string]string{
		"images.primary": c.Images.Primary,
		"images.golden":  c.Images.Golden,
		"images.marker":  c.Images.Marker,
	}
	seen := make(map[string]string)
	for _, key := range []string{"images.primary", "images.golden", "images.marker"} {
		name := names[key]
		if name == "" {
			problems = append(problems, key+" is required")
			continue
		}
		if other, ok := seen[name]; ok {
			problems = append(problems, fmt.Sprintf("%s and %s both name %q", other, key, name))
		}
		seen[name] = key
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
