package commands

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-sdboot/firmware"
)

var sealCmd = &cobra.Command{
	Use:   "seal INPUT OUTPUT",
	Short: "Append the CRC-32 trailer to an application binary",
	Args:  cobra.ExactArgs(2),
	RunE:  runSeal,
}

func init() {
	rootCmd.AddCommand(sealCmd)
}

func runSeal(cmd *cobra.Command, args []string) error {
	payload, err := afero.ReadFile(hostFs, args[0])
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	if err := afero.WriteFile(hostFs, args[1], firmware.Seal(payload), 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}

	printSuccess("sealed %s -> %s", args[0], args[1])
	printField("payload", "%d bytes", len(payload))
	printField("crc32", "0x%08X", firmware.Checksum(payload))
	return nil
}
