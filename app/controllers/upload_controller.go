package controllers

import (
	"log"
	"path"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/yicheng0/tryveo4/internal/pkg/storage"
)

var allowedUploadExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
}

var (
	storageClient   *storage.Client
	storageClientMu sync.Mutex
)

func getStorageClient() (*storage.Client, error) {
	storageClientMu.Lock()
	defer storageClientMu.Unlock()
	if storageClient != nil {
		return storageClient, nil
	}
	cfg, err := storage.LoadConfig()
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	storageClient = client
	return storageClient, nil
}

// HandleCreateUploadURL issues a presigned PUT URL so the browser uploads
// directly to the bucket.
func HandleCreateUploadURL(c *fiber.Ctx) error {
	var req struct {
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
	}
	if err := c.BodyParser(&req); err != nil || req.Filename == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "filename is required")
	}

	ext := strings.ToLower(path.Ext(req.Filename))
	if !allowedUploadExtensions[ext] {
		return jsonError(c, fiber.StatusUnprocessableEntity, "unsupported_type", "File type is not allowed")
	}

	client, err := getStorageClient()
	if err != nil {
		log.Printf("storage unavailable: %v", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "Uploads are not configured")
	}

	upload, err := client.NewPresignedUpload(c.UserContext(), req.Filename, req.ContentType)
	if err != nil {
		log.Printf("presign failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "presign_failed", "Could not create upload URL")
	}

	return c.JSON(upload)
}

// HandleCreateDownloadURL issues a presigned GET for a previously uploaded
// object.
func HandleCreateDownloadURL(c *fiber.Ctx) error {
	key := c.Query("key")
	if !strings.HasPrefix(key, "uploads/") {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "key must reference an upload")
	}

	client, err := getStorageClient()
	if err != nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "Uploads are not configured")
	}

	url, err := client.PresignedGetURL(c.UserContext(), key)
	if err != nil {
		log.Printf("presign download failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "presign_failed", "Could not create download URL")
	}

	return c.JSON(fiber.Map{"url": url})
}

// HandleAdminDeleteUpload removes an uploaded object from the bucket.
func HandleAdminDeleteUpload(c *fiber.Ctx) error {
	var req struct {
		Key string `json:"key"`
	}
	if err := c.BodyParser(&req); err != nil || !strings.HasPrefix(req.Key, "uploads/") {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "key must reference an upload")
	}

	client, err := getStorageClient()
	if err != nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "Uploads are not configured")
	}

	if err := client.DeleteObject(c.UserContext(), req.Key); err != nil {
		log.Printf("upload delete failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "delete_failed", "Could not delete object")
	}

	return c.JSON(fiber.Map{"ok": true})
}
