package bootloader

import (
	"context"

	"github.com/spf13/afero"
)

// Storage is the part of the storage collaborator the update logic needs.
// *storage.Volume implements it.
type Storage interface {
	Open(name string) (afero.File, error)
	Exists(name string) (bool, error)
	Remove(name string) error
}

// MountableStorage is a Storage that must be mounted at reset.
type MountableStorage interface {
	Storage
	Mount(ctx context.Context) error
}
