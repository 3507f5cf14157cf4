package model

import "gorm.io/datatypes"

type Document struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	// A document is addressed by (model, folder, name). Name is unique
	// within its model and folder, folder may be empty
	Model  string `gorm:"index;uniqueIndex:idx_documents_address" json:"-"`
	Folder string `gorm:"uniqueIndex:idx_documents_address" json:"folder,omitempty"`
	Name   string `gorm:"uniqueIndex:idx_documents_address" json:"name"`

	Value datatypes.JSON `json:"-"`

	// Unix second timestamps
	CreatedAt  int64  `gorm:"not null" json:"created_at"`
	ModifiedAt int64  `gorm:"not null;index" json:"modified_at"`
	ModifiedBy string `json:"modified_by"`
}
