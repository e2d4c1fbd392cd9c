package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"resume-builder/internal/shared/server/respond"
	"resume-builder/internal/shared/storage/object"
)

// sniffLen is enough for mimetype to recognise every image format we store.
const sniffLen = 3072

// serveFile streams objects from a store that has no public endpoint of its
// own, such as the local filesystem backend.
func serveFile(store object.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		rc, err := store.Open(c.Request.Context(), key)
		switch {
		case errors.Is(err, object.ErrNotFound), errors.Is(err, object.ErrInvalidKey):
			respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
			return
		case err != nil:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read file", nil)
			return
		}
		defer rc.Close()

		head := make([]byte, sniffLen)
		n, err := io.ReadFull(rc, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read file", nil)
			return
		}
		head = head[:n]

		c.Header("Cache-Control", "public, max-age=86400")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Content-Type", mimetype.Detect(head).String())
		c.Status(http.StatusOK)
		if _, err := c.Writer.Write(head); err != nil {
			return
		}
		_, _ = io.Copy(c.Writer, rc)
	}
}
