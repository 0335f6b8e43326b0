package service

import (
	"bitwise74/audio-api/model"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Index is the source of truth for asset identity. Every method is a
// single database round trip that commits on its own, there are no
// transactions spanning multiple calls
type Index struct {
	DB *gorm.DB
}

func NewIndex(db *gorm.DB) *Index {
	return &Index{DB: db}
}

// Create inserts a new asset record for an already existing file and
// returns it with a freshly generated id
func (i *Index) Create(ownerID, storagePath string) (*model.Asset, error) {
	asset := &model.Asset{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		StoragePath: storagePath,
		CreatedAt:   time.Now().Unix(),
	}

	if err := i.DB.Create(asset).Error; err != nil {
		return nil, err
	}

	return asset, nil
}

// ListLinksForOwner returns the storage paths of every asset the owner
// has. Used for duplicate detection on upload
func (i *Index) ListLinksForOwner(ownerID string) ([]string, error) {
	var links []string

	err := i.DB.
		Model(model.Asset{}).
		Where("owner_id = ?", ownerID).
		Pluck("storage_path", &links).
		Error
	if err != nil {
		return nil, err
	}

	return links, nil
}

// ListAll returns every asset record without filtering
func (i *Index) ListAll() ([]model.Asset, error) {
	var assets []model.Asset

	if err := i.DB.Find(&assets).Error; err != nil {
		return nil, err
	}

	return assets, nil
}

// FindByID returns nil when no record matches, absence is not an error
func (i *Index) FindByID(assetID string) (*model.Asset, error) {
	var assets []model.Asset

	err := i.DB.
		Where("id = ?", assetID).
		Limit(1).
		Find(&assets).
		Error
	if err != nil {
		return nil, err
	}

	if len(assets) == 0 {
		return nil, nil
	}

	return &assets[0], nil
}

// FindByOwnerAndID is the ownership primitive. A record that exists
// but belongs to someone else looks exactly like a missing one
func (i *Index) FindByOwnerAndID(ownerID, assetID string) (*model.Asset, error) {
	var assets []model.Asset

	err := i.DB.
		Where("id = ? AND owner_id = ?", assetID, ownerID).
		Limit(1).
		Find(&assets).
		Error
	if err != nil {
		return nil, err
	}

	if len(assets) == 0 {
		return nil, nil
	}

	return &assets[0], nil
}

// DeleteByID removes every record matching the id and returns what was
// removed. Deleting an id that doesn't exist is a no-op
func (i *Index) DeleteByID(assetID string) ([]model.Asset, error) {
	var assets []model.Asset

	err := i.DB.
		Where("id = ?", assetID).
		Find(&assets).
		Error
	if err != nil {
		return nil, err
	}

	if len(assets) == 0 {
		return assets, nil
	}

	err = i.DB.
		Where("id = ?", assetID).
		Delete(model.Asset{}).
		Error
	if err != nil {
		return nil, err
	}

	return assets, nil
}

// DeleteByOwnerAndID is the owner-scoped variant of DeleteByID
func (i *Index) DeleteByOwnerAndID(ownerID, assetID string) ([]model.Asset, error) {
	var assets []model.Asset

	err := i.DB.
		Where("id = ? AND owner_id = ?", assetID, ownerID).
		Find(&assets).
		Error
	if err != nil {
		return nil, err
	}

	if len(assets) == 0 {
		return assets, nil
	}

	err = i.DB.
		Where("id = ? AND owner_id = ?", assetID, ownerID).
		Delete(model.Asset{}).
		Error
	if err != nil {
		return nil, err
	}

	return assets, nil
}
