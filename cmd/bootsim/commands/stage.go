package commands

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-sdboot/firmware"
)

var (
	stageSealed   bool
	stageNoMarker bool
)

var stageCmd = &cobra.Command{
	Use:   "stage PAYLOAD",
	Short: "Place a new application image on the card and request an update",
	Long: `Seal an application binary with its CRC-32 trailer, write it to the
card as the primary image and raise the update marker, the way the running
application does after a download.

The image is written to a temporary file and renamed into place; the marker
is only created once the image is complete.

Examples:
  # Stage a raw binary
  bootsim stage build/app.bin

  # Stage an image that already carries its trailer
  bootsim stage --sealed build/app.sdb

  # Replace the primary image without requesting an update
  bootsim stage --no-marker build/app.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runStage,
}

func init() {
	stageCmd.Flags().BoolVar(&stageSealed, "sealed", false, "Input already ends with a CRC-32 trailer")
	stageCmd.Flags().BoolVar(&stageNoMarker, "no-marker", false, "Write the image but do not raise the update marker")

	rootCmd.AddCommand(stageCmd)
}

func runStage(cmd *cobra.Command, args []string) error {
	data, err := afero.ReadFile(hostFs, args[0])
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	payload := data
	if stageSealed {
		if !firmware.Valid(data) {
			return fmt.Errorf("%s: trailer does not match payload", args[0])
		}
		payload, _, _ = firmware.Split(data)
	}

	vol, err := mountVolume(cmd.Context())
	if err != nil {
		return err
	}

	if stageNoMarker {
		err = vol.WriteFile(cfg.Images.Primary, firmware.Seal(payload))
	} else {
		err = vol.Stage(cfg.Images.Primary, cfg.Images.Marker, payload)
	}
	if err != nil {
		return err
	}

	printSuccess("staged %s", cfg.Images.Primary)
	printField("payload", "%d bytes", len(payload))
	printField("crc32", "0x%08X", firmware.Checksum(payload))
	printField("update", "%t", !stageNoMarker)
	return nil
}
