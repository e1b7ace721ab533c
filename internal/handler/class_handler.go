package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oakmont-tuition/omt-api/internal/models"
	"github.com/oakmont-tuition/omt-api/internal/service"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
	"github.com/oakmont-tuition/omt-api/pkg/response"
)

// ClassHandler exposes class endpoints.
type ClassHandler struct {
	service *service.ClassService
}

// NewClassHandler constructs a class handler.
func NewClassHandler(svc *service.ClassService) *ClassHandler {
	return &ClassHandler{service: svc}
}

// List godoc
// @Summary List classes
// @Description List classes with pagination and filters
// @Tags Classes
// @Produce json
// @Param term_id query string false "Filter by term"
// @Param classroom_id query string false "Filter by classroom"
// @Param teacher_id query string false "Filter by teacher"
// @Param year query string false "Filter by student year"
// @Param is_active query bool false "Filter by active flag"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	var filter models.ClassFilter
	filter.TermID = c.Query("term_id")
	filter.ClassroomID = c.Query("classroom_id")
	filter.TeacherID = c.Query("teacher_id")
	filter.Year = c.Query("year")
	if isActive := c.Query("is_active"); isActive != "" {
		if val, err := strconv.ParseBool(isActive); err == nil {
			filter.IsActive = &val
		}
	}
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	classes, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, pagination)
}

// Today godoc
// @Summary Classes meeting today
// @Description Active classes of the current term that meet on today's weekday
// @Tags Classes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /classes/today [get]
func (h *ClassHandler) Today(c *gin.Context) {
	classes, err := h.service.Today(c.Request.Context(), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// Get godoc
// @Summary Get class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create class
// @Description Create a class; the schedule is validated against every active class in the same classroom and term
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.UpdateClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	var req service.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Delete godoc
// @Summary Delete class
// @Description Deactivate a class; slots and detentions are untouched
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 204
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CopyToTerm godoc
// @Summary Copy classes to another term
// @Description Clone every copy-flagged class of the source term into the target term, skipping clones that would conflict
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body handler.CopyClassesRequest true "Copy payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes/copy [post]
func (h *ClassHandler) CopyToTerm(c *gin.Context) {
	var req CopyClassesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	copied, err := h.service.CopyToTerm(c.Request.Context(), req.SourceTermID, req.TargetTermID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, copied, nil)
}

// CopyClassesRequest identifies the source and target terms for a class copy.
type CopyClassesRequest struct {
	SourceTermID string `json:"source_term_id" binding:"required"`
	TargetTermID string `json:"target_term_id" binding:"required"`
}
