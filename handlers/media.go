package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/storage"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/logger"
)

const maxUploadSize = 32 << 20

// MediaHandler accepts multipart uploads into the blob store
type MediaHandler struct {
	blobs storage.Blobs
}

func NewMediaHandler(b storage.Blobs) *MediaHandler { return &MediaHandler{blobs: b} }

func (h *MediaHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/media", h.Upload)
	rg.GET("/media/:key", h.Download)
}

// Upload stores the "file" part under a fresh uuid key. The response echoes
// the request content type and Accept-Language so callers can check what
// reached the server.
func (h *MediaHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	if err := h.blobs.Put(c.Request.Context(), key, f, fh.Size, contentType); err != nil {
		logger.Errorf("media upload failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	resp := gin.H{
		"key":                key,
		"name":               fh.Filename,
		"size":               fh.Size,
		"contentType":        contentType,
		"requestContentType": c.GetHeader("Content-Type"),
		"acceptLanguage":     c.GetHeader("Accept-Language"),
	}
	if u, err := h.blobs.PresignedURL(c.Request.Context(), key, time.Hour); err == nil {
		resp["url"] = u
	}
	c.JSON(http.StatusCreated, resp)
}

// Download streams a stored object back.
func (h *MediaHandler) Download(c *gin.Context) {
	rc, info, err := h.blobs.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		logger.Errorf("media download failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "download failed"})
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, info.Size, info.ContentType, rc, nil)
}
