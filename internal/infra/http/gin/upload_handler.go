package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tradepost/internal/infra/storage/s3"
)

const maxUploadBytes = 10 << 20

// UploadHandler stores listing photos and avatars in object storage.
type UploadHandler struct {
	Uploader s3.Uploader
	Logger   *slog.Logger
}

// Upload accepts one multipart file and returns its public URL.
func (h UploadHandler) Upload(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only images are accepted"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer file.Close()

	key := fmt.Sprintf("uploads/%s/%s%s", p.ID, uuid.NewString(), strings.ToLower(filepath.Ext(fileHeader.Filename)))
	url, err := h.Uploader.Upload(c.Request.Context(), key, file, contentType)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("upload failed", "key", key, "error", err)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}
