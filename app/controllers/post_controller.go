package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/yicheng0/tryveo4/app/models"
	"github.com/yicheng0/tryveo4/app/repository"
)

// HandleListPosts returns published posts, optionally filtered by ?tag=slug.
func HandleListPosts(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	postRepo := repository.GetGlobalFactory().GetPostRepository()

	tagSlug := c.Query("tag")
	var (
		posts []models.Post
		err   error
	)
	if tagSlug != "" {
		posts, err = postRepo.GetPublishedByTag(tagSlug, offset, limit)
	} else {
		posts, err = postRepo.GetPublished(offset, limit)
	}
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load posts")
	}

	total, err := postRepo.CountPublished()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count posts")
	}

	return c.JSON(fiber.Map{"posts": posts, "total": total})
}

// HandleGetPost returns one published post by slug.
func HandleGetPost(c *fiber.Ctx) error {
	slug := c.Params("slug")

	post, err := repository.GetGlobalFactory().GetPostRepository().GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Post not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load post")
	}
	if !post.IsPublished() {
		// Drafts are invisible on the public surface.
		return jsonError(c, fiber.StatusNotFound, "not_found", "Post not found")
	}

	return c.JSON(post)
}

// HandleListTags returns all tags for the blog navigation.
func HandleListTags(c *fiber.Ctx) error {
	tags, err := repository.GetGlobalFactory().GetTagRepository().GetAll()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load tags")
	}
	return c.JSON(fiber.Map{"tags": tags})
}
