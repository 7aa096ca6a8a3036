package controllers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/yicheng0/tryveo4/app/models"
	"github.com/yicheng0/tryveo4/app/repository"
	"github.com/yicheng0/tryveo4/internal/pkg/usercontext"
	"github.com/yicheng0/tryveo4/internal/pkg/utils"
)

type postRequest struct {
	Title    string   `json:"title"`
	Slug     string   `json:"slug"`
	Excerpt  string   `json:"excerpt"`
	Content  string   `json:"content"`
	CoverURL string   `json:"cover_url"`
	Publish  bool     `json:"publish"`
	Tags     []string `json:"tags"`
}

// HandleAdminListPosts returns all posts including drafts.
func HandleAdminListPosts(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	postRepo := repository.GetGlobalFactory().GetPostRepository()

	posts, err := postRepo.GetAll(offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load posts")
	}
	total, err := postRepo.Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count posts")
	}
	return c.JSON(fiber.Map{"posts": posts, "total": total})
}

// HandleAdminCreatePost creates a post, resolving tags and generating a
// unique slug from the title.
func HandleAdminCreatePost(c *fiber.Ctx) error {
	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}

	post := &models.Post{
		AuthorID: usercontext.GetUserID(c),
		Title:    req.Title,
		Slug:     req.Slug,
		Excerpt:  req.Excerpt,
		Content:  req.Content,
		CoverURL: req.CoverURL,
		Status:   models.PostStatusDraft,
	}
	post.EnsureSlug()
	if post.Excerpt == "" {
		post.Excerpt = utils.Excerpt(post.Content, 300)
	}
	if req.Publish {
		post.Publish()
	}
	if err := post.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	repos := repository.GetGlobalFactory()
	postRepo := repos.GetPostRepository()

	slug, err := uniquePostSlug(postRepo, post.Slug, 0)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Slug check failed")
	}
	post.Slug = slug

	tags, err := repos.GetTagRepository().GetOrCreateByNames(req.Tags)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Tag resolution failed")
	}
	post.Tags = tags

	if err := postRepo.Create(post); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create post")
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// HandleAdminUpdatePost updates an existing post.
func HandleAdminUpdatePost(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid post id")
	}

	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}

	repos := repository.GetGlobalFactory()
	postRepo := repos.GetPostRepository()
	post, err := postRepo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Post not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load post")
	}

	post.Title = req.Title
	post.Excerpt = req.Excerpt
	if post.Excerpt == "" {
		post.Excerpt = utils.Excerpt(req.Content, 300)
	}
	post.Content = req.Content
	post.CoverURL = req.CoverURL
	if req.Slug != "" && req.Slug != post.Slug {
		slug, err := uniquePostSlug(postRepo, req.Slug, post.ID)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Slug check failed")
		}
		post.Slug = slug
	}
	if req.Publish {
		post.Publish()
	} else {
		post.Status = models.PostStatusDraft
	}
	if err := post.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	tags, err := repos.GetTagRepository().GetOrCreateByNames(req.Tags)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Tag resolution failed")
	}
	if err := postRepo.ReplaceTags(post, tags); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update tags")
	}
	post.Tags = tags

	if err := postRepo.Update(post); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update post")
	}
	return c.JSON(post)
}

// HandleAdminDeletePost soft-deletes a post.
func HandleAdminDeletePost(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid post id")
	}
	if err := repository.GetGlobalFactory().GetPostRepository().Delete(uint(id)); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to delete post")
	}
	return c.JSON(fiber.Map{"ok": true})
}

// uniquePostSlug appends a numeric suffix until the slug is free.
func uniquePostSlug(repo repository.PostRepository, base string, exceptID uint) (string, error) {
	candidate := base
	for i := 2; ; i++ {
		var (
			taken bool
			err   error
		)
		if exceptID > 0 {
			taken, err = repo.SlugExistsExceptID(candidate, exceptID)
		} else {
			taken, err = repo.SlugExists(candidate)
		}
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
