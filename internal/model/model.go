// Package model provides the columns shared by every persisted entity.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model is embedded by persisted entities. IDs are generated by Postgres.
type Model struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Scrub zeroes the Model fields, leaving only the entity's own values. This
// is typically used to compare entities in tests.
func (m *Model) Scrub() {
	m.ID = uuid.Nil
	m.CreatedAt = time.Time{}
	m.UpdatedAt = time.Time{}
	m.DeletedAt = gorm.DeletedAt{}
}

// IsZero indicates if the entity has not been persisted yet.
func (m Model) IsZero() bool {
	return m.ID == uuid.Nil
}
