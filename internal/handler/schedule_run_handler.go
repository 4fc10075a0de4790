package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusops/timetable-engine/internal/dto"
	exportpkg "github.com/campusops/timetable-engine/internal/export"
	"github.com/campusops/timetable-engine/internal/render"
	appErrors "github.com/campusops/timetable-engine/pkg/errors"
	"github.com/campusops/timetable-engine/pkg/response"
)

type scheduleRunOrchestrator interface {
	Submit(ctx context.Context, req dto.CreateScheduleRunRequest) (*dto.ScheduleRunResponse, error)
	Get(ctx context.Context, id string) (*dto.ScheduleRunResponse, error)
	Timetables(ctx context.Context, id string) ([]render.TeacherTimetable, error)
}

// ScheduleRunHandler exposes the gateway's schedule-run endpoints.
type ScheduleRunHandler struct {
	service scheduleRunOrchestrator
}

// NewScheduleRunHandler constructs the handler.
func NewScheduleRunHandler(svc scheduleRunOrchestrator) *ScheduleRunHandler {
	return &ScheduleRunHandler{service: svc}
}

// Create triggers a pipeline run over the submitted catalogue.
func (h *ScheduleRunHandler) Create(c *gin.Context) {
	var req dto.CreateScheduleRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule run payload"))
		return
	}
	result, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, result)
}

// Get returns the current state of a schedule run.
func (h *ScheduleRunHandler) Get(c *gin.Context) {
	id := c.Param("id")
	result, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Export streams a finished run's timetables as CSV or PDF.
func (h *ScheduleRunHandler) Export(c *gin.Context) {
	id := c.Param("id")
	format := exportpkg.Format(c.DefaultQuery("format", string(exportpkg.FormatCSV)))

	tables, err := h.service.Timetables(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := exportpkg.RenderAll(tables, format)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unsupported export format"))
		return
	}

	contentType := "text/csv"
	ext := "csv"
	if format == exportpkg.FormatPDF {
		contentType = "application/pdf"
		ext = "pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, id, ext))
	c.Data(http.StatusOK, contentType, payload)
}
