package controllers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, formatTimePtr(nil))

	now := time.Date(2026, 5, 1, 12, 34, 56, 0, time.Local)
	formatted := formatTimePtr(&now)
	assert.IsType(t, "", formatted)

	expected := now.UTC().Format(time.RFC3339)
	assert.Equal(t, expected, formatted)
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantOffset int
		wantLimit  int
	}{
		{"defaults", "", 0, defaultPageSize},
		{"second page", "page=2&page_size=10", 10, 10},
		{"clamps oversized page size", "page_size=9999", 0, maxPageSize},
		{"garbage falls back", "page=x&page_size=y", 0, defaultPageSize},
		{"negative page", "page=-3", 0, defaultPageSize},
	}

	app := fiber.New()
	var offset, limit int
	app.Get("/t", func(c *fiber.Ctx) error {
		offset, limit = parsePagination(c)
		return c.SendString("ok")
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/t?"+tt.query, nil)
			_, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOffset, offset)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}
