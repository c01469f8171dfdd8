// Package bootloader implements the boot-time firmware update logic.
//
// # Overview
//
// On every reset the bootloader decides whether to flash a new application
// image from removable storage, verifies it, falls back to a golden image
// when verification fails, and finally transfers control to the application:
//   - Look for the update marker; if present, delete it and request an update
//   - If requested, install the primary image into flash
//   - Verify flash against the primary image's CRC-32 trailer
//   - On failure, install the golden image and verify again
//   - Deinitialize peripherals and jump to the application
//
// The bootloader never refuses to boot. When neither image verifies, the
// device runs whatever the last install left in flash and the failure is
// logged.
//
// # Basic Usage
//
//	vol := storage.NewVolume(afero.NewBasePathFs(afero.NewOsFs(), "/media/sd"))
//	dev := myboard.Flash()    // implements flash.Device
//	cpu := myboard.CPU()      // implements bootloader.CPU
//
//	bl := bootloader.New(vol, dev, cpu,
//	    bootloader.WithLogger(log),
//	    bootloader.WithPeripherals(console),
//	)
//	cycle, err := bl.Boot(context.Background())
//
// # State Machine
//
// The update check is an explicit state machine. Orchestrator.Step takes a
// Cycle and returns the next one, so a boot can be driven and inspected one
// transition at a time:
//
//	orch := bootloader.NewOrchestrator(vol, dev)
//	c := bootloader.NewCycle()
//	for !c.Done() {
//	    c = orch.Step(ctx, c)
//	    fmt.Println(c.State, c.Decision)
//	}
//
// # Configuration Options
//
//	bootloader.New(vol, dev, cpu,
//	    bootloader.WithGeometry(flash.DefaultGeometry()),
//	    bootloader.WithImages("0:Application.bin", "0:g_application.bin"),
//	    bootloader.WithUpdateMarker("0:Flag.txt"),
//	    bootloader.WithProgressCallback(progressFunc),
//	    bootloader.WithMetrics(bootloader.NewMetrics(prometheus.DefaultRegisterer)),
//	    bootloader.WithRestartDelay(5*time.Second),
//	)
//
// # Error Handling
//
// Failures during the primary and golden checks become fallback transitions
// and are recorded in Cycle.Failures as *StageError values wrapping:
//   - storage.ErrNotFound / storage.ErrUnavailable: image or volume missing
//   - *firmware.TooSmallError: image shorter than its trailer
//   - *ShortReadError: image or flash ended early
//   - *flash.EraseError / *flash.WriteError: programming failed
//   - *ChecksumMismatchError: flash does not match the trailer
//   - *ImageTooLargeError: payload exceeds the flash region
//
// Only a storage mount failure is fatal; Boot then resets the device.
//
// # Hardware Independence
//
// Flash access goes through flash.Device and the final jump through CPU, so
// the whole sequence runs against flash.MemDevice and a fake CPU in tests.
package bootloader
