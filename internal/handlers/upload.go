package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rexinehouse/catalog/internal/upload"
)

type UploadHandler struct {
	Uploads *upload.Store
}

// Serve returns a stored product attachment. Names that fail
// sanitizing (traversal attempts included) look like missing files.
func (h *UploadHandler) Serve(c echo.Context) error {
	path, err := h.Uploads.Resolve(c.Param("filename"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	return c.File(path)
}
