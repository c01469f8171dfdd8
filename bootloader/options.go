package bootloader

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/moffa90/go-sdboot/flash"
	"github.com/moffa90/go-sdboot/storage"
)

// Config holds the bootloader configuration.
type Config struct {
	// Geometry describes the application flash region
	Geometry flash.Geometry

	// PrimaryImage is the storage path of the candidate application
	PrimaryImage string

	// GoldenImage is the storage path of the known-good fallback
	GoldenImage string

	// UpdateMarker is the storage path whose presence requests an update
	UpdateMarker string

	// Logger receives all diagnostics (default: disabled)
	Logger zerolog.Logger

	// ProgressCallback is called while images are installed (optional)
	ProgressCallback ProgressCallback

	// Metrics records boot outcomes (optional)
	Metrics *Metrics

	// Peripherals are deinitialized, in order, before control is transferred
	Peripherals []Peripheral

	// RestartDelay is how long a failed storage mount waits before resetting
	RestartDelay time.Duration
}

// defaultConfig returns the configuration of the reference board.
func defaultConfig() Config {
	return Config{
		Geometry:     flash.DefaultGeometry(),
		PrimaryImage: storage.PrimaryImage,
		GoldenImage:  storage.GoldenImage,
		UpdateMarker: storage.UpdateMarker,
		Logger:       zerolog.Nop(),
		RestartDelay: 5 * time.Second,
	}
}

func newConfig(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option is a functional option for configuring the bootloader components.
type Option func(*Config)

// WithGeometry sets the flash geometry.
//
// Example:
//
//	geom := flash.DefaultGeometry()
//	geom.LoadAddress = 0x8000
//	bl := bootloader.New(vol, dev, cpu, bootloader.WithGeometry(geom))
func WithGeometry(geom flash.Geometry) Option {
	return func(c *Config) {
		c.Geometry = geom
	}
}

// WithImages sets the primary and golden image paths. Empty values keep the
// defaults.
func WithImages(primary, golden string) Option {
	return func(c *Config) {
		if primary != "" {
			c.PrimaryImage = primary
		}
		if golden != "" {
			c.GoldenImage = golden
		}
	}
}

// WithUpdateMarker sets the marker file path.
func WithUpdateMarker(marker string) Option {
	return func(c *Config) {
		if marker != "" {
			c.UpdateMarker = marker
		}
	}
}

// WithLogger sets the logger.
//
// Example:
//
//	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
//	bl := bootloader.New(vol, dev, cpu, bootloader.WithLogger(log))
func WithLogger(log zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithProgressCallback sets a callback to track image installation.
//
// Example:
//
//	bl := bootloader.New(vol, dev, cpu,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("%s %.1f%%\n", p.Image, p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithMetrics records boot outcomes into m.
func WithMetrics(m *Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithPeripherals adds peripherals to deinitialize before the jump.
func WithPeripherals(peripherals ...Peripheral) Option {
	return func(c *Config) {
		c.Peripherals = append(c.Peripherals, peripherals...)
	}
}

// WithRestartDelay sets the wait before a reset after a fatal mount failure.
func WithRestartDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.RestartDelay = d
		}
	}
}
