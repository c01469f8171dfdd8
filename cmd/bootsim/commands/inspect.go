package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-sdboot/bootloader"
	"github.com/moffa90/go-sdboot/firmware"
	"github.com/moffa90/go-sdboot/storage"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the images on the card and whether flash matches them",
	Long: `Report the update marker and, for the primary and golden images, the
size, stored CRC-32, whether the file matches its own trailer and whether
the application flash currently holds it. Nothing is modified.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	vol, err := mountVolume(ctx)
	if err != nil {
		return err
	}
	dev, err := openFlash()
	if err != nil {
		return err
	}
	defer func() { _ = dev.Deinit() }()

	verifier := bootloader.NewVerifier(vol, dev,
		bootloader.WithGeometry(cfg.Geometry()),
		bootloader.WithLogger(log),
	)

	marker, err := vol.Exists(cfg.Images.Marker)
	if err != nil {
		return err
	}
	if marker {
		printWarning("update marker %s present", cfg.Images.Marker)
	} else {
		printSuccess("no update marker")
	}

	for _, name := range []string{cfg.Images.Primary, cfg.Images.Golden} {
		inspectImage(cmd, vol, verifier, name)
	}
	return nil
}

func inspectImage(cmd *cobra.Command, vol *storage.Volume, verifier *bootloader.Verifier, name string) {
	f, err := vol.Open(name)
	if errors.Is(err, storage.ErrNotFound) {
		printFailure("%s missing", name)
		return
	}
	if err != nil {
		printFailure("%s: %v", name, err)
		return
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		printFailure("%s: %v", name, err)
		return
	}
	img, err := firmware.Inspect(name, f, info.Size())
	_ = f.Close()
	if err != nil {
		printFailure("%s: %v", name, err)
		return
	}

	printSuccess("%s", name)
	printField("size", "%d bytes", img.Size)
	printField("payload", "%d bytes", img.PayloadSize())
	printField("crc32", "0x%08X", img.Expected)
	printField("file", "%s", verdict(verifier.VerifyFile(cmd.Context(), name)))
	printField("flash", "%s", verdict(verifier.VerifyFlash(cmd.Context(), name)))
}

func verdict(err error) string {
	if err == nil {
		return green.Sprint("match")
	}
	if errors.Is(err, bootloader.ErrChecksumMismatch) {
		return red.Sprint("mismatch")
	}
	return yellow.Sprint(err.Error())
}
