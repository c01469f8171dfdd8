package bootloader

import "time"

// Installation phases reported through Progress.Phase.
const (
	PhaseInstalling = "installing"
	PhaseComplete   = "complete"
)

// Progress contains information about an image installation.
// Passed to ProgressCallback after every programmed row.
type Progress struct {
	// Phase is PhaseInstalling while rows are written and PhaseComplete once
	// the whole payload is in flash
	Phase string

	// Image is the storage path being installed
	Image string

	// CurrentRow is the number of rows programmed so far
	CurrentRow int

	// TotalRows is the number of rows the payload occupies
	TotalRows int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// BytesWritten is the number of payload bytes programmed so far
	BytesWritten int64

	// ElapsedTime is the time since the installation started
	ElapsedTime time.Duration
}

// ProgressCallback is called during installation to report progress.
// Implementations should return quickly; boot is blocked while they run.
//
// Example:
//
//	bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	    fmt.Printf("[%s] %s %.1f%% - Row %d/%d\n",
//	        p.Phase, p.Image, p.Percentage, p.CurrentRow, p.TotalRows)
//	})
type ProgressCallback func(Progress)
