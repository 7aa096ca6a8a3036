package repository

import (
	"gorm.io/gorm"

	"github.com/yicheng0/tryveo4/app/models"
)

// postRepository implements the PostRepository interface
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository instance
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create creates a new post
func (r *postRepository) Create(post *models.Post) error {
	return r.db.Create(post).Error
}

// GetByID retrieves a post with its tags by ID
func (r *postRepository) GetByID(id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.Preload("Tags").First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetBySlug retrieves a post with its tags by slug
func (r *postRepository) GetBySlug(slug string) (*models.Post, error) {
	var post models.Post
	err := r.db.Preload("Tags").Where("slug = ?", slug).First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetPublished retrieves published posts, newest first
func (r *postRepository) GetPublished(offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.Preload("Tags").
		Where("status = ?", models.PostStatusPublished).
		Order("published_at DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	return posts, err
}

// GetPublishedByTag retrieves published posts carrying the given tag
func (r *postRepository) GetPublishedByTag(tagSlug string, offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.Preload("Tags").
		Joins("JOIN post_tags ON post_tags.post_id = posts.id").
		Joins("JOIN tags ON tags.id = post_tags.tag_id").
		Where("tags.slug = ? AND posts.status = ?", tagSlug, models.PostStatusPublished).
		Order("posts.published_at DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	return posts, err
}

// GetAll retrieves posts regardless of status, newest first
func (r *postRepository) GetAll(offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.Preload("Tags").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	return posts, err
}

// Update updates a post
func (r *postRepository) Update(post *models.Post) error {
	return r.db.Save(post).Error
}

// Delete soft-deletes a post
func (r *postRepository) Delete(id uint) error {
	return r.db.Delete(&models.Post{}, id).Error
}

// Count returns the total number of posts
func (r *postRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Post{}).Count(&count).Error
	return count, err
}

// CountPublished returns the number of published posts
func (r *postRepository) CountPublished() (int64, error) {
	var count int64
	err := r.db.Model(&models.Post{}).Where("status = ?", models.PostStatusPublished).Count(&count).Error
	return count, err
}

// SlugExists checks whether a slug is already taken
func (r *postRepository) SlugExists(slug string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Post{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// SlugExistsExceptID checks slug uniqueness while editing an existing post
func (r *postRepository) SlugExistsExceptID(slug string, id uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Post{}).Where("slug = ? AND id <> ?", slug, id).Count(&count).Error
	return count > 0, err
}

// ReplaceTags sets the post's tag associations to exactly the given tags
func (r *postRepository) ReplaceTags(post *models.Post, tags []models.Tag) error {
	return r.db.Model(post).Association("Tags").Replace(tags)
}
