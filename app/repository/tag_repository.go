package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/yicheng0/tryveo4/app/models"
)

// tagRepository implements the TagRepository interface
type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository creates a new tag repository instance
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

// GetOrCreateByNames resolves tag names to rows, creating missing ones.
// Blank and duplicate names are dropped.
func (r *tagRepository) GetOrCreateByNames(names []string) ([]models.Tag, error) {
	seen := make(map[string]bool)
	var tags []models.Tag
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		tag := models.Tag{Name: name}
		tag.EnsureSlug()
		if seen[tag.Slug] {
			continue
		}
		seen[tag.Slug] = true

		var existing models.Tag
		err := r.db.Where("slug = ?", tag.Slug).First(&existing).Error
		if err == nil {
			tags = append(tags, existing)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err := r.db.Create(&tag).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// GetBySlug retrieves a tag by slug
func (r *tagRepository) GetBySlug(slug string) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.Where("slug = ?", slug).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// GetAll retrieves all tags ordered by name
func (r *tagRepository) GetAll() ([]models.Tag, error) {
	var tags []models.Tag
	err := r.db.Order("name ASC").Find(&tags).Error
	return tags, err
}

// Delete removes a tag and its post associations
func (r *tagRepository) Delete(id uint) error {
	if err := r.db.Exec("DELETE FROM post_tags WHERE tag_id = ?", id).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.Tag{}, id).Error
}
