package model

import "time"

// Document is one resource stored by the database-backed store.
type Document struct {
	Key       string    `gorm:"column:doc_key;primaryKey;size:128"`
	Payload   []byte    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
