package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-sdboot/bootloader"
)

var (
	bootRestartDelay time.Duration
	bootQuiet        bool
)

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Run one simulated reset of the device",
	Long: `Run the bootloader once against the simulated card and flash.

The update marker is consumed if present, the primary image is installed
and verified, the golden image is restored when needed, and control is
handed to whatever the flash holds. The simulated CPU only reports the
jump.

Examples:
  # Boot with the card in ./sdcard and flash in ./flash.bin
  bootsim boot

  # Record boot outcomes for the node exporter
  bootsim boot --metrics-textfile /var/lib/node_exporter/sdboot.prom`,
	Args: cobra.NoArgs,
	RunE: runBoot,
}

func init() {
	bootCmd.Flags().DurationVar(&bootRestartDelay, "restart-delay", time.Second, "Wait before reset when the card cannot be mounted")
	bootCmd.Flags().BoolVarP(&bootQuiet, "quiet", "q", false, "Do not draw install progress")
	bootCmd.Flags().String("metrics-textfile", "", "Write boot metrics to this file in Prometheus text format")
	if err := settings.BindPFlag("metrics.textfile", bootCmd.Flags().Lookup("metrics-textfile")); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(bootCmd)
}

func runBoot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dev, err := openFlash()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := bootloader.NewMetrics(reg)
	cpu := &simulatedCPU{log: log.With().Str("component", "cpu").Logger()}

	opts := []bootloader.Option{
		bootloader.WithGeometry(cfg.Geometry()),
		bootloader.WithImages(cfg.Images.Primary, cfg.Images.Golden),
		bootloader.WithUpdateMarker(cfg.Images.Marker),
		bootloader.WithLogger(log),
		bootloader.WithMetrics(metrics),
		bootloader.WithPeripherals(dev),
		bootloader.WithRestartDelay(bootRestartDelay),
	}
	if !bootQuiet {
		bars := newInstallBars()
		opts = append(opts, bootloader.WithProgressCallback(bars.update))
	}

	bl := bootloader.New(newVolume(), dev, cpu, opts...)
	cycle, bootErr := bl.Boot(ctx)
	if cycle.ID == "" {
		// mount failed; the flash was never handed over
		_ = dev.Deinit()
	}

	if path := cfg.Metrics.Textfile; path != "" {
		if err := prometheus.WriteToTextfile(path, reg); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("cannot write metrics textfile")
		}
	}

	if bootErr != nil {
		printFailure("boot failed: %v", bootErr)
		if cpu.resets > 0 {
			printWarning("device reset requested")
		}
		return bootErr
	}

	printCycle(cycle, cpu)
	return nil
}

func printCycle(cycle bootloader.Cycle, cpu *simulatedCPU) {
	if cycle.Decision.Verified() {
		printSuccess("%s", cycle.Decision)
	} else {
		printFailure("%s", cycle.Decision)
	}

	printField("boot id", "%s", cycle.ID)
	printField("update", "%t", cycle.UpdateRequested)
	printField("marker consumed", "%t", cycle.MarkerConsumed)
	printField("elapsed", "%s", time.Since(cycle.Started).Round(time.Millisecond))
	printField("stack pointer", "0x%08X", cpu.stackPointer)
	printField("vector table", "0x%08X", cpu.vectorTable)
	printField("entry", "0x%08X", cpu.entry)

	for _, err := range cycle.Failures {
		printWarning("%v", err)
	}
}

// installBars draws one progress bar per installed image.
type installBars struct {
	current string
	bar     *progressbar.ProgressBar
}

func newInstallBars() *installBars {
	return &installBars{}
}

func (b *installBars) update(p bootloader.Progress) {
	if b.bar == nil || b.current != p.Image {
		b.current = p.Image
		b.bar = progressbar.NewOptions(p.TotalRows,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(fmt.Sprintf("installing %s", p.Image)),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("rows"),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		)
	}

	if p.Phase == bootloader.PhaseComplete {
		_ = b.bar.Finish()
		b.bar = nil
		return
	}
	_ = b.bar.Set(p.CurrentRow)
}

// simulatedCPU records the handoff instead of branching to it.
type simulatedCPU struct {
	log zerolog.Logger

	stackPointer uint32
	vectorTable  uint32
	entry        uint32
	resets       int
}

func (c *simulatedCPU) SetStackPointer(sp uint32) {
	c.stackPointer = sp
	c.log.Debug().Str("sp", fmt.Sprintf("0x%08X", sp)).Msg("stack pointer set")
}

func (c *simulatedCPU) RelocateVectorTable(base uint32) {
	c.vectorTable = base
	c.log.Debug().Str("vtor", fmt.Sprintf("0x%08X", base)).Msg("vector table relocated")
}

func (c *simulatedCPU) Jump(entry uint32) error {
	c.entry = entry
	c.log.Info().Str("entry", fmt.Sprintf("0x%08X", entry)).Msg("jumping to application")
	return nil
}

func (c *simulatedCPU) Reset() error {
	c.resets++
	c.log.Warn().Msg("system reset")
	return nil
}
