package storage

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/yatube/pkg/yatube/apierror"
	"go.uber.org/zap"
)

// Handler serves blobs from store. The blob name is taken from the "filepath" wildcard.
func Handler(store Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("filepath")
		body, err := store.Open(c.Request.Context(), name)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidName) {
				apierror.Respond(c, apierror.ErrNotFound)
				return
			}
			apierror.Respond(c, err)
			return
		}
		defer body.Close()

		contentType := mime.TypeByExtension(path.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Content-Type", contentType)
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Cache-Control", "public, max-age=86400")
		c.Status(http.StatusOK)
		if c.Request.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(c.Writer, body); err != nil {
			zap.L().Warn("stream media", zap.String("name", name), zap.Error(err))
		}
	}
}
