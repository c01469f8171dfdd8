package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/afero"
)

// Well-known paths on the default drive.
const (
	DefaultDrive = "0"

	PrimaryImage = "0:Application.bin"
	GoldenImage  = "0:g_application.bin"
	UpdateMarker = "0:Flag.txt"

	probeFile = ".mount_probe"
)

var (
	// ErrUnavailable reports that the volume is not mounted or cannot be mounted
	ErrUnavailable = errors.New("storage unavailable")

	// ErrNotFound reports a missing file
	ErrNotFound = errors.New("file not found")
)

// Volume is a mounted storage device addressed with drive-prefixed paths.
type Volume struct {
	fs    afero.Fs
	drive string
	log   zerolog.Logger

	mountRetries uint64
	mountBackoff time.Duration
	mounted      bool
}

// Option configures a Volume.
type Option func(*Volume)

// WithDrive sets the drive identifier accepted in path prefixes.
func WithDrive(drive string) Option {
	return func(v *Volume) {
		if drive != "" {
			v.drive = drive
		}
	}
}

// WithLogger sets the logger used for mount diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(v *Volume) {
		v.log = log
	}
}

// WithMountRetry sets how many times a failed probe is retried and the delay
// between attempts.
func WithMountRetry(retries uint64, backoff time.Duration) Option {
	return func(v *Volume) {
		v.mountRetries = retries
		if backoff > 0 {
			v.mountBackoff = backoff
		}
	}
}

// NewVolume wraps fs as an unmounted volume.
func NewVolume(fs afero.Fs, opts ...Option) *Volume {
	if fs == nil {
		panic("filesystem cannot be nil")
	}

	v := &Volume{
		fs:           fs,
		drive:        DefaultDrive,
		log:          zerolog.Nop(),
		mountRetries: 3,
		mountBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Mount probes the filesystem with a write/read/remove cycle, retrying
// failures with a constant backoff.
func (v *Volume) Mount(ctx context.Context) error {
	// mountBackoff is always positive; NewConstant panics otherwise
	backoff := retry.WithMaxRetries(v.mountRetries, retry.NewConstant(v.mountBackoff))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := v.probe(); err != nil {
			v.log.Warn().Err(err).Int("attempt", attempt).Msg("storage probe failed")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		v.log.Error().Err(err).Int("attempts", attempt).Msg("storage mount failed")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	v.mounted = true
	v.log.Info().Str("drive", v.drive).Msg("storage mounted")
	return nil
}

func (v *Volume) probe() error {
	want := []byte("storage probe\n")
	if err := afero.WriteFile(v.fs, "/"+probeFile, want, 0o644); err != nil {
		return fmt.Errorf("write probe: %w", err)
	}
	got, err := afero.ReadFile(v.fs, "/"+probeFile)
	if err != nil {
		return fmt.Errorf("read probe: %w", err)
	}
	if string(got) != string(want) {
		return fmt.Errorf("probe read back %d bytes, wrote %d", len(got), len(want))
	}
	return v.fs.Remove("/" + probeFile)
}

// Mounted reports whether Mount succeeded and Deinit has not been called.
func (v *Volume) Mounted() bool {
	return v.mounted
}

// Name returns the peripheral name used in handoff logs.
func (v *Volume) Name() string {
	return "storage:" + v.drive
}

// Deinit unmounts the volume. Later operations report ErrUnavailable.
func (v *Volume) Deinit() error {
	v.mounted = false
	return nil
}

// Resolve maps a drive-prefixed name such as "0:Flag.txt" or
// "0:/Application.bin" to a path on the underlying filesystem.
// Names without a drive prefix are taken relative to the volume root.
func (v *Volume) Resolve(name string) (string, error) {
	if drive, rest, ok := strings.Cut(name, ":"); ok {
		if drive != v.drive {
			return "", fmt.Errorf("%w: unknown drive %q in %q", ErrUnavailable, drive, name)
		}
		name = rest
	}
	if name == "" {
		return "", fmt.Errorf("empty path")
	}
	return path.Clean("/" + name), nil
}

func (v *Volume) resolve(op, name string) (string, error) {
	if !v.mounted {
		return "", fmt.Errorf("%s %s: %w", op, name, ErrUnavailable)
	}
	p, err := v.Resolve(name)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", op, name, err)
	}
	return p, nil
}

func wrapErr(op, name string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", op, name, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, name, err)
}

// Open opens name for reading.
func (v *Volume) Open(name string) (afero.File, error) {
	p, err := v.resolve("open", name)
	if err != nil {
		return nil, err
	}
	f, err := v.fs.Open(p)
	if err != nil {
		return nil, wrapErr("open", name, err)
	}
	return f, nil
}

// Create creates or truncates name for writing.
func (v *Volume) Create(name string) (afero.File, error) {
	p, err := v.resolve("create", name)
	if err != nil {
		return nil, err
	}
	f, err := v.fs.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, wrapErr("create", name, err)
	}
	return f, nil
}

// Stat returns file information for name.
func (v *Volume) Stat(name string) (os.FileInfo, error) {
	p, err := v.resolve("stat", name)
	if err != nil {
		return nil, err
	}
	info, err := v.fs.Stat(p)
	if err != nil {
		return nil, wrapErr("stat", name, err)
	}
	return info, nil
}

// Exists reports whether name is present. Errors other than absence are
// returned as is.
func (v *Volume) Exists(name string) (bool, error) {
	_, err := v.Stat(name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Remove deletes name.
func (v *Volume) Remove(name string) error {
	p, err := v.resolve("remove", name)
	if err != nil {
		return err
	}
	if err := v.fs.Remove(p); err != nil {
		return wrapErr("remove", name, err)
	}
	return nil
}

// Rename moves oldname to newname, replacing newname if it exists.
func (v *Volume) Rename(oldname, newname string) error {
	from, err := v.resolve("rename", oldname)
	if err != nil {
		return err
	}
	to, err := v.resolve("rename", newname)
	if err != nil {
		return err
	}
	if err := v.fs.Rename(from, to); err != nil {
		return wrapErr("rename", oldname, err)
	}
	return nil
}

// ReadFile returns the full contents of name.
func (v *Volume) ReadFile(name string) ([]byte, error) {
	f, err := v.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, wrapErr("read", name, err)
	}
	return data, nil
}
