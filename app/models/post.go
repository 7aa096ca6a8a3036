package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

// Post is a blog/CMS entry authored by admins.
type Post struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	AuthorID    uint           `gorm:"not null;index" json:"author_id"`
	Title       string         `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=3,max=200"`
	Slug        string         `gorm:"type:varchar(220);not null;uniqueIndex" json:"slug"`
	Excerpt     string         `gorm:"type:varchar(500);default:''" json:"excerpt" validate:"max=500"`
	Content     string         `gorm:"type:longtext" json:"content"`
	CoverURL    string         `gorm:"type:varchar(255);default:''" json:"cover_url" validate:"max=255"`
	Status      string         `gorm:"type:varchar(20);not null;default:'draft';index" json:"status" validate:"oneof=draft published"`
	PublishedAt *time.Time     `gorm:"type:timestamp;default:null;index" json:"published_at,omitempty"`
	Tags        []Tag          `gorm:"many2many:post_tags;" json:"tags,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Post) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// EnsureSlug derives the slug from the title when none was provided.
func (p *Post) EnsureSlug() {
	if p.Slug == "" {
		p.Slug = slug.Make(p.Title)
	}
}

// IsPublished reports whether the post is publicly visible.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// Publish marks the post published and stamps PublishedAt once.
func (p *Post) Publish() {
	p.Status = PostStatusPublished
	if p.PublishedAt == nil {
		now := time.Now()
		p.PublishedAt = &now
	}
}
