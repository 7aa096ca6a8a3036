package models

import (
	"time"

	"github.com/gosimple/slug"
)

// Tag labels blog posts; linked via the post_tags join table.
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Slug      string    `gorm:"type:varchar(120);not null;uniqueIndex" json:"slug"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// EnsureSlug derives the slug from the name when none was provided.
func (t *Tag) EnsureSlug() {
	if t.Slug == "" {
		t.Slug = slug.Make(t.Name)
	}
}
