package bootloader

import (
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-sdboot/flash"
)

// Bootloader runs the complete reset sequence: mount storage, run the update
// check, shut down peripherals and hand control to the application.
type Bootloader struct {
	store  MountableStorage
	dev    flash.Device
	cpu    CPU
	orch   *Orchestrator
	config Config
}

// New creates a Bootloader.
//
// Example:
//
//	vol := storage.NewVolume(fs)
//	bl := bootloader.New(vol, dev, cpu,
//	    bootloader.WithLogger(log),
//	    bootloader.WithPeripherals(console),
//	)
//	cycle, err := bl.Boot(ctx)
func New(store MountableStorage, dev flash.Device, cpu CPU, opts ...Option) *Bootloader {
	if cpu == nil {
		panic("cpu cannot be nil")
	}

	return &Bootloader{
		store:  store,
		dev:    dev,
		cpu:    cpu,
		orch:   NewOrchestrator(store, dev, opts...),
		config: newConfig(opts),
	}
}

// Orchestrator returns the update state machine used by Boot.
func (b *Bootloader) Orchestrator() *Orchestrator {
	return b.orch
}

// Boot runs the reset sequence. On hardware it does not return: either the
// application starts or, when storage cannot be mounted, the device resets.
// With a simulated CPU it returns the finished cycle and any transfer error.
func (b *Bootloader) Boot(ctx context.Context) (Cycle, error) {
	log := b.config.Logger
	log.Info().Msg("enter bootloader")

	if err := b.store.Mount(ctx); err != nil {
		log.Error().Err(err).Dur("restart_in", b.config.RestartDelay).Msg("storage mount failed, restarting")
		b.wait(ctx, b.config.RestartDelay)
		if resetErr := b.cpu.Reset(); resetErr != nil {
			return Cycle{}, fmt.Errorf("mount storage: %w (reset: %v)", err, resetErr)
		}
		return Cycle{}, fmt.Errorf("mount storage: %w", err)
	}

	cycle := b.orch.Run(ctx)
	return cycle, b.Handoff(cycle)
}

// Handoff deinitializes the peripherals and transfers control to the image at
// the load address, whatever the cycle decided. Peripherals are shut down even
// when the vector table cannot be read; no jump happens then.
func (b *Bootloader) Handoff(cycle Cycle) error {
	loadAddress := b.config.Geometry.LoadAddress
	log := b.config.Logger.With().
		Str("boot_id", cycle.ID).
		Str("decision", cycle.Decision.String()).
		Logger()

	// the flash device may be one of the peripherals, so read before deinit
	vt, readErr := ReadVectorTable(b.dev, loadAddress)

	peripherals := append([]Peripheral(nil), b.config.Peripherals...)
	if p, ok := b.store.(Peripheral); ok {
		peripherals = append(peripherals, p)
	}
	if err := DeinitPeripherals(peripherals, log); err != nil {
		log.Warn().Err(err).Msg("continuing handoff after deinit failures")
	}

	if readErr != nil {
		log.Error().Err(readErr).Msg("cannot read application vector table")
		return readErr
	}
	if vt.Blank() {
		log.Warn().Msg("application vector table is blank")
	}

	log.Info().
		Str("stack_pointer", fmt.Sprintf("0x%08X", vt.StackPointer)).
		Str("entry", fmt.Sprintf("0x%08X", vt.ResetHandler)).
		Str("vector_table", fmt.Sprintf("0x%08X", loadAddress&VTORMask)).
		Msg("exit bootloader")

	return Launch(b.cpu, vt, loadAddress)
}

func (b *Bootloader) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
