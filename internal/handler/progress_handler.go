package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oakmont-tuition/omt-api/internal/models"
	"github.com/oakmont-tuition/omt-api/internal/service"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
	"github.com/oakmont-tuition/omt-api/pkg/response"
)

// ProgressHandler exposes progress plan endpoints.
type ProgressHandler struct {
	service *service.ProgressService
}

// NewProgressHandler constructs a progress handler.
func NewProgressHandler(svc *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{service: svc}
}

// List godoc
// @Summary List progress plans
// @Tags Progress
// @Produce json
// @Param term_id query string false "Filter by term"
// @Param year query string false "Filter by year label"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /progress [get]
func (h *ProgressHandler) List(c *gin.Context) {
	filter := models.ProgressFilter{
		TermID: c.Query("term_id"),
		Year:   c.Query("year"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	plans, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, pagination)
}

// Get godoc
// @Summary Get progress plan
// @Tags Progress
// @Produce json
// @Param id path string true "Progress plan ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /progress/{id} [get]
func (h *ProgressHandler) Get(c *gin.Context) {
	plan, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Create godoc
// @Summary Create progress plan
// @Tags Progress
// @Accept json
// @Produce json
// @Param payload body service.CreateProgressRequest true "Progress payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /progress [post]
func (h *ProgressHandler) Create(c *gin.Context) {
	var req service.CreateProgressRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	plan, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// Update godoc
// @Summary Update progress plan
// @Tags Progress
// @Accept json
// @Produce json
// @Param id path string true "Progress plan ID"
// @Param payload body service.UpdateProgressRequest true "Progress payload"
// @Success 200 {object} response.Envelope
// @Router /progress/{id} [put]
func (h *ProgressHandler) Update(c *gin.Context) {
	var req service.UpdateProgressRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	plan, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// UpsertWeek godoc
// @Summary Record one week's content
// @Description Replace the topics, assessment and comments recorded for a week
// @Tags Progress
// @Accept json
// @Produce json
// @Param id path string true "Progress plan ID"
// @Param week path int true "Week number"
// @Param payload body service.UpsertWeekRequest true "Week payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /progress/{id}/weeks/{week} [put]
func (h *ProgressHandler) UpsertWeek(c *gin.Context) {
	week, err := strconv.Atoi(c.Param("week"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "week must be a number"))
		return
	}
	var req service.UpsertWeekRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	plan, err := h.service.UpsertWeek(c.Request.Context(), c.Param("id"), week, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Delete godoc
// @Summary Delete progress plan
// @Tags Progress
// @Produce json
// @Param id path string true "Progress plan ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /progress/{id} [delete]
func (h *ProgressHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
