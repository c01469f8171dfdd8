package bootloader

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/moffa90/go-sdboot/flash"
)

// State is a step of the per-boot update state machine.
type State int

const (
	// StateCheckMarker looks for (and consumes) the update marker
	StateCheckMarker State = iota

	// StateCheckPrimary optionally installs the primary image, then verifies flash
	StateCheckPrimary

	// StateCheckGolden installs and verifies the golden image
	StateCheckGolden

	// StateBoot is terminal: control passes to the application
	StateBoot
)

func (s State) String() string {
	switch s {
	case StateCheckMarker:
		return "check marker"
	case StateCheckPrimary:
		return "check primary"
	case StateCheckGolden:
		return "check golden"
	case StateBoot:
		return "boot"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Decision is the outcome of one boot's update check. It is never persisted.
type Decision int

const (
	// NoUpdateNeeded is the decision before the primary image has been checked
	NoUpdateNeeded Decision = iota

	// PrimaryValid means flash holds the primary image
	PrimaryValid

	// PrimaryInvalidGoldenValid means flash was restored from the golden image
	PrimaryInvalidGoldenValid

	// PrimaryInvalidGoldenInvalid means no image verified; flash holds whatever
	// the last install left behind
	PrimaryInvalidGoldenInvalid
)

func (d Decision) String() string {
	switch d {
	case NoUpdateNeeded:
		return "no update needed"
	case PrimaryValid:
		return "primary valid"
	case PrimaryInvalidGoldenValid:
		return "primary invalid, golden valid"
	case PrimaryInvalidGoldenInvalid:
		return "primary invalid, golden invalid"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Verified reports whether flash holds an image whose checksum matched.
func (d Decision) Verified() bool {
	return d == PrimaryValid || d == PrimaryInvalidGoldenValid
}

// Cycle is the state of one boot. It is passed into and returned from every
// transition; nothing about a boot is kept anywhere else.
type Cycle struct {
	// ID identifies the boot in logs
	ID string

	// State is the next step to run
	State State

	// UpdateRequested is set when the marker was found this boot
	UpdateRequested bool

	// MarkerConsumed is set when the marker was found and deleted
	MarkerConsumed bool

	// Decision is the outcome so far
	Decision Decision

	// Failures lists every error that caused a fallback, in order
	Failures []error

	// Started is when the cycle began
	Started time.Time
}

// NewCycle returns a cycle positioned at StateCheckMarker.
func NewCycle() Cycle {
	return Cycle{
		ID:      uuid.NewString(),
		State:   StateCheckMarker,
		Started: time.Now(),
	}
}

// Done reports whether the cycle reached the terminal state.
func (c Cycle) Done() bool {
	return c.State == StateBoot
}

func (c Cycle) fail(state State, image string, err error) Cycle {
	c.Failures = append(slices.Clip(c.Failures), &StageError{State: state, Image: image, Err: err})
	return c
}

// Orchestrator decides on every boot whether to install the primary image,
// fall back to the golden image, or boot what is already in flash.
type Orchestrator struct {
	store     Storage
	verifier  *Verifier
	installer *Installer
	config    Config
}

// NewOrchestrator creates an Orchestrator over store and dev.
//
// Example:
//
//	vol := storage.NewVolume(afero.NewBasePathFs(afero.NewOsFs(), "/media/sd"))
//	_ = vol.Mount(ctx)
//	orch := bootloader.NewOrchestrator(vol, dev, bootloader.WithLogger(log))
//	cycle := orch.Run(ctx)
//	fmt.Println(cycle.Decision)
func NewOrchestrator(store Storage, dev flash.Device, opts ...Option) *Orchestrator {
	if store == nil {
		panic("storage cannot be nil")
	}
	if dev == nil {
		panic("device cannot be nil")
	}

	cfg := newConfig(opts)
	prog := flash.NewProgrammer(dev, cfg.Geometry)

	return &Orchestrator{
		store:     store,
		verifier:  NewVerifier(store, dev, opts...),
		installer: NewInstaller(store, prog, opts...),
		config:    cfg,
	}
}

// Run executes a full cycle from StateCheckMarker to StateBoot. It always
// terminates in StateBoot; failures are recorded in the returned cycle.
func (o *Orchestrator) Run(ctx context.Context) Cycle {
	c := NewCycle()
	log := o.logger(c)
	log.Info().Msg("update check started")

	for !c.Done() {
		c = o.Step(ctx, c)
	}

	o.config.Metrics.observeBoot(c.Decision)

	event := log.Info()
	if !c.Decision.Verified() {
		event = log.Error()
	}
	event.
		Str("decision", c.Decision.String()).
		Bool("update_requested", c.UpdateRequested).
		Int("failures", len(c.Failures)).
		Str("elapsed", time.Since(c.Started).String()).
		Msg("update check finished")

	return c
}

// Step runs the transition for c.State and returns the resulting cycle.
// A cycle in StateBoot is returned unchanged.
func (o *Orchestrator) Step(ctx context.Context, c Cycle) Cycle {
	switch c.State {
	case StateCheckMarker:
		return o.checkMarker(c)
	case StateCheckPrimary:
		return o.checkPrimary(ctx, c)
	case StateCheckGolden:
		return o.checkGolden(ctx, c)
	case StateBoot:
		return c
	default:
		o.logger(c).Error().Int("state", int(c.State)).Msg("unknown state, booting")
		c.State = StateBoot
		return c
	}
}

// checkMarker consumes the update marker. The marker is deleted as soon as it
// is seen, whatever happens later in the cycle.
func (o *Orchestrator) checkMarker(c Cycle) Cycle {
	log := o.logger(c).With().Str("marker", o.config.UpdateMarker).Logger()
	c.Decision = NoUpdateNeeded
	c.State = StateCheckPrimary

	found, err := o.store.Exists(o.config.UpdateMarker)
	if err != nil {
		log.Error().Err(err).Msg("cannot check update marker, using resident flash")
		return c.fail(StateCheckMarker, o.config.UpdateMarker, err)
	}
	if !found {
		log.Info().Msg("update marker not found, using resident flash")
		return c
	}

	c.UpdateRequested = true
	log.Info().Msg("update marker detected, proceeding with firmware update")

	if err := o.store.Remove(o.config.UpdateMarker); err != nil {
		log.Error().Err(err).Msg("cannot delete update marker")
		return c.fail(StateCheckMarker, o.config.UpdateMarker, err)
	}

	c.MarkerConsumed = true
	o.config.Metrics.observeMarker()
	return c
}

// checkPrimary installs the primary image when an update was requested and
// then verifies flash against the primary image's trailer.
func (o *Orchestrator) checkPrimary(ctx context.Context, c Cycle) Cycle {
	image := o.config.PrimaryImage

	if c.UpdateRequested {
		if err := o.install(ctx, c, image); err != nil {
			c.State = StateCheckGolden
			return c.fail(StateCheckPrimary, image, err)
		}
	}

	if err := o.verifier.VerifyFlash(ctx, image); err != nil {
		o.config.Metrics.observeVerifyFailure(image)
		o.logger(c).Warn().Err(err).Str("image", image).Msg("primary image failed verification, falling back to golden image")
		c.State = StateCheckGolden
		return c.fail(StateCheckPrimary, image, err)
	}

	c.Decision = PrimaryValid
	c.State = StateBoot
	return c
}

// checkGolden overwrites flash with the golden image and verifies it. The
// cycle moves to StateBoot whatever the outcome.
func (o *Orchestrator) checkGolden(ctx context.Context, c Cycle) Cycle {
	image := o.config.GoldenImage
	log := o.logger(c)

	if err := o.install(ctx, c, image); err != nil {
		c.Decision = PrimaryInvalidGoldenInvalid
		c.State = StateBoot
		return c.fail(StateCheckGolden, image, err)
	}

	if err := o.verifier.VerifyFlash(ctx, image); err != nil {
		o.config.Metrics.observeVerifyFailure(image)
		log.Error().Err(err).Str("image", image).Msg("golden image failed verification, booting resident flash")
		c.Decision = PrimaryInvalidGoldenInvalid
		c.State = StateBoot
		return c.fail(StateCheckGolden, image, err)
	}

	log.Info().Str("image", image).Msg("flash restored from golden image")
	c.Decision = PrimaryInvalidGoldenValid
	c.State = StateBoot
	return c
}

func (o *Orchestrator) install(ctx context.Context, c Cycle, image string) error {
	n, err := o.installer.Install(ctx, image)
	o.config.Metrics.observeInstall(image, n, err)
	if err != nil {
		o.logger(c).Error().Err(err).Str("image", image).Int64("bytes_written", n).Msg("install failed")
	}
	return err
}

func (o *Orchestrator) logger(c Cycle) *zerolog.Logger {
	log := o.config.Logger.With().Str("boot_id", c.ID).Str("state", c.State.String()).Logger()
	return &log
}
