package storage

import (
	"errors"
	"time"

	"github.com/motorscan/carhealth/internal/types"
	"github.com/motorscan/carhealth/internal/types/media"
)

// ErrNotFound is returned when a car or media row does not exist or
// has been soft-deleted.
var ErrNotFound = errors.New("not found")

type Storage interface {
	CreateCar(userID string, req types.CarCreateRequest) (string, error)
	GetCar(id string) (types.Car, error)
	UpdateCar(id string, req types.CarUpdateRequest) error
	UpdateCarStatus(id string, status types.CarStatus) error
	ListCarsByUser(userID string) ([]types.Car, error)

	CreateMedia(m media.Media) (string, error)
	GetMedia(carID, mediaID string) (media.Media, error)
	MarkUploaded(carID, mediaID, storageKey, storageURL, thumbnailURL string, meta *media.Metadata) error
	ListMediaByCar(carID string) ([]media.Media, error)
	SoftDeleteMedia(carID, mediaID string) error

	// DeleteAbandonedUploads soft-deletes authorization rows that were
	// never uploaded within the given window. Bytes that reached
	// storage but were never registered are left alone.
	DeleteAbandonedUploads(olderThan time.Duration) (int64, error)
}
