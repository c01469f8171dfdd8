package storage

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-sdboot/firmware"
)

func TestWriteFileIsAtomic(t *testing.T) {
	fs := afero.NewMemMapFs()
	v := mountedVolume(t, fs)

	require.NoError(t, v.WriteFile(PrimaryImage, []byte("first")))
	require.NoError(t, v.WriteFile(PrimaryImage, []byte("second")))

	data, err := v.ReadFile(PrimaryImage)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	exists, err := afero.Exists(fs, "/Application.bin"+tempSuffix)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStage(t *testing.T) {
	v := mountedVolume(t, afero.NewMemMapFs())
	payload := []byte("new application build")

	require.NoError(t, v.Stage(PrimaryImage, UpdateMarker, payload))

	image, err := v.ReadFile(PrimaryImage)
	require.NoError(t, err)
	assert.True(t, firmware.Valid(image))

	got, _, err := firmware.Split(image)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	exists, err := v.Exists(UpdateMarker)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStageWithoutMountRaisesNoMarker(t *testing.T) {
	fs := afero.NewMemMapFs()
	v := NewVolume(fs)

	err := v.Stage(PrimaryImage, UpdateMarker, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrUnavailable)

	exists, err := afero.Exists(fs, "/Flag.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCopyFile(t *testing.T) {
	v := mountedVolume(t, afero.NewMemMapFs())
	image := firmware.Seal(make([]byte, 1000))
	require.NoError(t, v.WriteFile(PrimaryImage, image))

	n, err := v.CopyFile(PrimaryImage, GoldenImage)
	require.NoError(t, err)
	assert.Equal(t, int64(len(image)), n)

	golden, err := v.ReadFile(GoldenImage)
	require.NoError(t, err)
	assert.Equal(t, image, golden)
}

func TestCopyFileMissingSource(t *testing.T) {
	v := mountedVolume(t, afero.NewMemMapFs())

	_, err := v.CopyFile(PrimaryImage, GoldenImage)
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := v.Exists(GoldenImage)
	require.NoError(t, err)
	assert.False(t, exists)
}
