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

// FollowupHandler exposes followup endpoints.
type FollowupHandler struct {
	service *service.FollowupService
}

// NewFollowupHandler constructs a followup handler.
func NewFollowupHandler(svc *service.FollowupService) *FollowupHandler {
	return &FollowupHandler{service: svc}
}

// List godoc
// @Summary List followups
// @Tags Followups
// @Produce json
// @Param is_completed query bool false "Filter by completion"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /followups [get]
func (h *FollowupHandler) List(c *gin.Context) {
	var filter models.FollowupFilter
	if completed := c.Query("is_completed"); completed != "" {
		if val, err := strconv.ParseBool(completed); err == nil {
			filter.IsCompleted = &val
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	followups, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, followups, pagination)
}

// Get godoc
// @Summary Get followup
// @Tags Followups
// @Produce json
// @Param id path string true "Followup ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /followups/{id} [get]
func (h *FollowupHandler) Get(c *gin.Context) {
	followup, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, followup, nil)
}

// Create godoc
// @Summary Raise followup
// @Tags Followups
// @Accept json
// @Produce json
// @Param payload body service.CreateFollowupRequest true "Followup payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /followups [post]
func (h *FollowupHandler) Create(c *gin.Context) {
	var req service.CreateFollowupRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	followup, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, followup)
}

// Update godoc
// @Summary Update followup
// @Tags Followups
// @Accept json
// @Produce json
// @Param id path string true "Followup ID"
// @Param payload body service.UpdateFollowupRequest true "Followup payload"
// @Success 200 {object} response.Envelope
// @Router /followups/{id} [put]
func (h *FollowupHandler) Update(c *gin.Context) {
	var req service.UpdateFollowupRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	followup, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, followup, nil)
}

// Complete godoc
// @Summary Complete followup
// @Tags Followups
// @Produce json
// @Param id path string true "Followup ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /followups/{id}/complete [post]
func (h *FollowupHandler) Complete(c *gin.Context) {
	followup, err := h.service.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, followup, nil)
}

// Delete godoc
// @Summary Delete followup
// @Tags Followups
// @Produce json
// @Param id path string true "Followup ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /followups/{id} [delete]
func (h *FollowupHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
