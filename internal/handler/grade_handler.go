package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gpalytics/gpalytics-api/internal/service"
	appErrors "github.com/gpalytics/gpalytics-api/pkg/errors"
	"github.com/gpalytics/gpalytics-api/pkg/response"
)

// GradeHandler wires HTTP endpoints to grade upload, listing and deletion.
type GradeHandler struct {
	uploads *service.UploadService
	grades  *service.GradeService
}

// NewGradeHandler creates a new handler.
func NewGradeHandler(uploads *service.UploadService, grades *service.GradeService) *GradeHandler {
	return &GradeHandler{uploads: uploads, grades: grades}
}

// Upload godoc
// @Summary Upload scorecard image
// @Description Extract grades from the uploaded scorecard and store them
// @Tags Grades
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Scorecard image (png, jpeg or webp)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /grades/upload [post]
func (h *GradeHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidFile, "file form field is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidFile.Code, appErrors.ErrInvalidFile.Status, "failed to open uploaded file"))
		return
	}
	defer file.Close()

	summary, err := h.uploads.Process(c.Request.Context(), claims.UserID,
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), fileHeader.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// List godoc
// @Summary List stored grades
// @Description All grades for the authenticated student, ordered by semester then course code
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	grades, err := h.grades.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, grades, map[string]interface{}{"count": len(grades)})
}

// ListBatches godoc
// @Summary List upload history
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /grades/batches [get]
func (h *GradeHandler) ListBatches(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	batches, err := h.grades.ListBatches(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, batches, nil)
}

// DeleteSemester godoc
// @Summary Delete one semester's grades
// @Description Removes every grade in the semester; deleting an empty semester succeeds
// @Tags Grades
// @Produce json
// @Param semester path int true "Semester number"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /grades/semester/{semester} [delete]
func (h *GradeHandler) DeleteSemester(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	semester, err := strconv.Atoi(c.Param("semester"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semester must be a number"))
		return
	}

	removed, err := h.grades.DeleteSemester(c.Request.Context(), claims.UserID, semester)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"removed": removed}, nil)
}

// DeleteBatch godoc
// @Summary Delete one upload batch
// @Description Removes the grades stored by the batch along with its record
// @Tags Grades
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /grades/batch/{id} [delete]
func (h *GradeHandler) DeleteBatch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	removed, err := h.grades.DeleteBatch(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"removed": removed}, nil)
}

// Reset godoc
// @Summary Delete all grades
// @Description Removes every grade and upload batch for the student
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /grades/reset [delete]
func (h *GradeHandler) Reset(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	removed, err := h.grades.Reset(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"removed": removed}, nil)
}
