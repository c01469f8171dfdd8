package bootloader

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-sdboot/firmware"
	"github.com/moffa90/go-sdboot/storage"
)

func TestVerifyFlash(t *testing.T) {
	env := newTestEnv(t)
	payload := appPayload(1, 700)
	env.writeImage(t, storage.PrimaryImage, payload)
	env.dev.Load(env.geom.LoadAddress, payload)

	v := NewVerifier(env.vol, env.dev, env.options()...)
	require.NoError(t, v.VerifyFlash(context.Background(), storage.PrimaryImage))

	assert.Equal(t, 0, env.dev.EraseCount())
	assert.Equal(t, 0, env.dev.WriteCount())
}

func TestVerifyFlashMismatch(t *testing.T) {
	env := newTestEnv(t)
	payload := appPayload(1, 700)
	env.writeImage(t, storage.PrimaryImage, payload)

	v := NewVerifier(env.vol, env.dev, env.options()...)
	err := v.VerifyFlash(context.Background(), storage.PrimaryImage)
	require.ErrorIs(t, err, ErrChecksumMismatch)

	var mismatch *ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, storage.PrimaryImage, mismatch.Image)
	assert.Equal(t, env.geom.LoadAddress, mismatch.Address)
	assert.Equal(t, int64(700), mismatch.Length)
	assert.Equal(t, firmware.Checksum(payload), mismatch.Expected)
	assert.Equal(t, firmware.Checksum(bytes.Repeat([]byte{0xFF}, 700)), mismatch.Actual)
}

func TestVerifyFlashErrors(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.vol.WriteFile("0:tiny.bin", []byte{1, 2}))
	env.writeImage(t, "0:huge.bin", make([]byte, env.geom.RegionSize+1))

	v := NewVerifier(env.vol, env.dev, env.options()...)
	ctx := context.Background()

	err := v.VerifyFlash(ctx, storage.GoldenImage)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	var tooSmall *firmware.TooSmallError
	assert.ErrorAs(t, v.VerifyFlash(ctx, "0:tiny.bin"), &tooSmall)

	var tooLarge *ImageTooLargeError
	assert.ErrorAs(t, v.VerifyFlash(ctx, "0:huge.bin"), &tooLarge)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, v.VerifyFlash(cancelled, "0:huge.bin"), context.Canceled)
}

func TestVerifyFile(t *testing.T) {
	env := newTestEnv(t)
	v := NewVerifier(env.vol, env.dev, env.options()...)
	ctx := context.Background()

	env.writeImage(t, storage.GoldenImage, appPayload(9, 513))
	assert.NoError(t, v.VerifyFile(ctx, storage.GoldenImage))

	env.writeCorruptImage(t, storage.PrimaryImage, appPayload(9, 513))
	assert.ErrorIs(t, v.VerifyFile(ctx, storage.PrimaryImage), ErrChecksumMismatch)
}

func TestVerifyFileSealedPayloads(t *testing.T) {
	env := newTestEnv(t)
	v := NewVerifier(env.vol, env.dev, env.options()...)
	rng := rand.New(rand.NewSource(5160))

	for _, n := range []int{0, 1, 3, 4, 255, 256, 257, 4096} {
		payload := make([]byte, n)
		rng.Read(payload)
		env.writeImage(t, storage.PrimaryImage, payload)

		assert.NoError(t, v.VerifyFile(context.Background(), storage.PrimaryImage), "payload of %d bytes", n)
	}
}

func TestVerifyDetectsEveryByteFlip(t *testing.T) {
	env := newTestEnv(t)
	payload := appPayload(3, 300)
	env.writeImage(t, storage.PrimaryImage, payload)
	v := NewVerifier(env.vol, env.dev, env.options()...)

	for i := range payload {
		corrupted := bytes.Clone(payload)
		corrupted[i] ^= 0x01
		env.dev.Load(env.geom.LoadAddress, corrupted)

		err := v.VerifyFlash(context.Background(), storage.PrimaryImage)
		require.ErrorIs(t, err, ErrChecksumMismatch, "flip at byte %d went undetected", i)
	}
}

func TestVerifyFlashReadFailure(t *testing.T) {
	env := newTestEnv(t)
	payload := appPayload(1, 700)
	env.writeImage(t, storage.PrimaryImage, payload)
	env.dev.Load(env.geom.LoadAddress, payload)

	readErr := errors.New("bus fault")
	dev := failingReadDevice{MemDevice: env.dev, from: env.geom.LoadAddress + 256, err: readErr}

	err := NewVerifier(env.vol, dev, env.options()...).VerifyFlash(context.Background(), storage.PrimaryImage)
	require.ErrorIs(t, err, ErrShortRead)
	assert.ErrorIs(t, err, readErr)

	var short *ShortReadError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, int64(256), short.Offset)
	assert.Equal(t, int64(256), short.Got)
	assert.Equal(t, int64(700), short.Want)
}
