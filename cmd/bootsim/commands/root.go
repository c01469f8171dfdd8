package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moffa90/go-sdboot/flash"
	"github.com/moffa90/go-sdboot/internal/config"
	"github.com/moffa90/go-sdboot/internal/logger"
	"github.com/moffa90/go-sdboot/storage"
)

var (
	version string
	commit  string
	date    string

	cfgFile string

	settings = viper.New()

	// populated by PersistentPreRunE
	cfg *config.Config
	log zerolog.Logger

	// hostFs is the filesystem the simulated card and flash live on
	hostFs = afero.NewOsFs()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bootsim",
	Short: "bootsim - SD card firmware update bootloader simulator",
	Long: `bootsim runs the SD card bootloader on a workstation.

A directory stands in for the SD card and a file stands in for program
memory. Staging an image and raising the update marker, then running
"bootsim boot", goes through the same marker, primary and golden checks as
the device does on every reset.`,
	Version:           version,
	PersistentPreRunE: loadConfig,

	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		return err
	}
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./bootsim.yaml if present)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.String("root", "sdcard", "Directory standing in for the SD card")
	flags.String("flash", "flash.bin", "File standing in for program memory")

	for key, name := range map[string]string{
		"log_level":    "log-level",
		"log_format":   "log-format",
		"storage.root": "root",
		"flash.file":   "flash",
	} {
		if err := settings.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(settings, cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	log = logger.New(cfg.LogLevel, os.Stderr, cfg.LogFormat != "json")
	log.Debug().Str("config", settings.ConfigFileUsed()).Msg("configuration loaded")
	return nil
}

// newVolume returns the card volume, unmounted.
func newVolume() *storage.Volume {
	fs := afero.NewBasePathFs(hostFs, cfg.Storage.Root)
	return storage.NewVolume(fs,
		storage.WithDrive(cfg.Storage.Drive),
		storage.WithLogger(log.With().Str("component", "storage").Logger()),
		storage.WithMountRetry(cfg.Storage.MountRetries, cfg.Storage.MountBackoff),
	)
}

// mountVolume returns the card volume ready for use. The card directory is
// created when missing.
func mountVolume(ctx context.Context) (*storage.Volume, error) {
	if err := hostFs.MkdirAll(cfg.Storage.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create card directory: %w", err)
	}
	vol := newVolume()
	if err := vol.Mount(ctx); err != nil {
		return nil, err
	}
	return vol, nil
}

func openFlash() (*flash.FileDevice, error) {
	return flash.OpenFileDevice(hostFs, cfg.Flash.File, cfg.Geometry())
}
