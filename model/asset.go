// Package model defines database models
package model

type Asset struct {
	// UUID string generated when the record is created
	ID string `gorm:"primaryKey" json:"id"`

	// ID of the user that uploaded the recording. Never changes
	// after the record is created
	OwnerID string `gorm:"index;not null" json:"-"`

	// Server-local path of the transcoded file. Derived from the
	// owner and the original filename so two users can upload
	// files with the same name without colliding
	StoragePath string `gorm:"index;not null" json:"storage_path"`

	CreatedAt int64 `gorm:"not null" json:"created_at"`
}
