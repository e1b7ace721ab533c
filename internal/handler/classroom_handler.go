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

// ClassroomHandler exposes classroom endpoints.
type ClassroomHandler struct {
	service *service.ClassroomService
}

// NewClassroomHandler constructs a classroom handler.
func NewClassroomHandler(svc *service.ClassroomService) *ClassroomHandler {
	return &ClassroomHandler{service: svc}
}

// List godoc
// @Summary List classrooms
// @Tags Classrooms
// @Produce json
// @Param is_active query bool false "Filter by active flag"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classrooms [get]
func (h *ClassroomHandler) List(c *gin.Context) {
	var filter models.ClassroomFilter
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

	classrooms, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classrooms, pagination)
}

// Get godoc
// @Summary Get classroom
// @Tags Classrooms
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classrooms/{id} [get]
func (h *ClassroomHandler) Get(c *gin.Context) {
	classroom, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classroom, nil)
}

// Create godoc
// @Summary Create classroom
// @Tags Classrooms
// @Accept json
// @Produce json
// @Param payload body service.CreateClassroomRequest true "Classroom payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classrooms [post]
func (h *ClassroomHandler) Create(c *gin.Context) {
	var req service.CreateClassroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	classroom, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, classroom)
}

// Update godoc
// @Summary Update classroom
// @Description Update a classroom; capacity changes apply to future slots only
// @Tags Classrooms
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body service.UpdateClassroomRequest true "Classroom payload"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id} [put]
func (h *ClassroomHandler) Update(c *gin.Context) {
	var req service.UpdateClassroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	classroom, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classroom, nil)
}

// Delete godoc
// @Summary Delete classroom
// @Tags Classrooms
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /classrooms/{id} [delete]
func (h *ClassroomHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
