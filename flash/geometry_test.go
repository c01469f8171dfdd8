package flash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultGeometry(t *testing.T) {
	g := DefaultGeometry()
	assert.NoError(t, g.Validate())
	assert.Equal(t, uint32(0x12000), g.LoadAddress)
	assert.Equal(t, uint32(DefaultFlashSize), g.End())
}

func TestGeometryValidate(t *testing.T) {
	tests := []struct {
		name    string
		geom    Geometry
		wantErr string
	}{
		{
			name:    "zero page",
			geom:    Geometry{LoadAddress: 0, RegionSize: 256, PageSize: 0, ChunkSize: 64},
			wantErr: "page size",
		},
		{
			name:    "zero chunk",
			geom:    Geometry{LoadAddress: 0, RegionSize: 256, PageSize: 256, ChunkSize: 0},
			wantErr: "chunk size",
		},
		{
			name:    "chunk larger than page",
			geom:    Geometry{LoadAddress: 0, RegionSize: 256, PageSize: 64, ChunkSize: 128},
			wantErr: "exceeds page size",
		},
		{
			name:    "page not multiple of chunk",
			geom:    Geometry{LoadAddress: 0, RegionSize: 300, PageSize: 100, ChunkSize: 64},
			wantErr: "not a multiple",
		},
		{
			name:    "unaligned load address",
			geom:    Geometry{LoadAddress: 0x100, RegionSize: 512, PageSize: 512, ChunkSize: 64},
			wantErr: "not page aligned",
		},
		{
			name:    "partial page region",
			geom:    Geometry{LoadAddress: 0, RegionSize: 300, PageSize: 256, ChunkSize: 64},
			wantErr: "region size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.geom.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestGeometryContains(t *testing.T) {
	g := Geometry{LoadAddress: 0x1000, RegionSize: 0x400, PageSize: 256, ChunkSize: 64}

	assert.True(t, g.Contains(0x1000, 0x400))
	assert.True(t, g.Contains(0x13C0, 64))
	assert.False(t, g.Contains(0x0F00, 256))
	assert.False(t, g.Contains(0x1300, 257))
	assert.False(t, g.Contains(0x1400, 1))
}

func TestGeometryPages(t *testing.T) {
	g := DefaultGeometry()

	assert.Equal(t, 0, g.Pages(0))
	assert.Equal(t, 1, g.Pages(1))
	assert.Equal(t, 1, g.Pages(256))
	assert.Equal(t, 2, g.Pages(257))
}
