package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-sdboot/firmware"
)

var goldCmd = &cobra.Command{
	Use:   "gold",
	Short: "Copy the primary image to the golden image",
	Long: `Make the current primary image the known-good fallback.

Run this once a newly installed application has proven itself. The copy is
written to a temporary file and renamed, then checked against its trailer.`,
	Args: cobra.NoArgs,
	RunE: runGold,
}

func init() {
	rootCmd.AddCommand(goldCmd)
}

func runGold(cmd *cobra.Command, args []string) error {
	vol, err := mountVolume(cmd.Context())
	if err != nil {
		return err
	}

	n, err := vol.CopyFile(cfg.Images.Primary, cfg.Images.Golden)
	if err != nil {
		return err
	}

	data, err := vol.ReadFile(cfg.Images.Golden)
	if err != nil {
		return err
	}
	if !firmware.Valid(data) {
		printWarning("%s was copied but its trailer does not match", cfg.Images.Golden)
		return fmt.Errorf("golden image %s failed verification", cfg.Images.Golden)
	}

	printSuccess("%s copied to %s (%d bytes)", cfg.Images.Primary, cfg.Images.Golden, n)
	return nil
}
