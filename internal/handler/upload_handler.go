package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusprint/print-api/internal/service"
	appErrors "github.com/campusprint/print-api/pkg/errors"
	"github.com/campusprint/print-api/pkg/response"
)

// UploadHandler receives documents ahead of order creation.
type UploadHandler struct {
	uploads *service.UploadService
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(uploads *service.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Upload godoc
// @Summary Upload a document
// @Description Store a PDF and return its page count and download URL
// @Tags Orders
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /orders/upload [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to open upload"))
		return
	}
	defer file.Close()

	result, err := h.uploads.Process(c.Request.Context(), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), fileHeader.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}
