package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-extractor/internal/raster"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

// ConvertHandler serves the format converters.
type ConvertHandler struct {
	logger    logger.Logger
	maxUpload int64
}

func NewConvertHandler(log logger.Logger, maxUpload int64) *ConvertHandler {
	return &ConvertHandler{logger: log, maxUpload: maxUpload}
}

// ToPNG re-encodes an uploaded JPEG as PNG.
func (h *ConvertHandler) ToPNG(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		handleError(h.logger, c, uploadStatus(err), "Invalid file upload", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handleError(h.logger, c, uploadStatus(err), "Failed to read file", err)
		return
	}

	png, err := raster.JPEGToPNG(data)
	if err != nil {
		handleError(h.logger, c, statusFor(err), "Failed to convert image", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pngName(header.Filename)))
	c.Data(http.StatusOK, "image/png", png)
}

func pngName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".png"
}
