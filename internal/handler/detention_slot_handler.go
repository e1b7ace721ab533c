package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oakmont-tuition/omt-api/internal/middleware"
	"github.com/oakmont-tuition/omt-api/internal/models"
	"github.com/oakmont-tuition/omt-api/internal/service"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
	"github.com/oakmont-tuition/omt-api/pkg/response"
)

// DetentionSlotHandler exposes slot inventory endpoints.
type DetentionSlotHandler struct {
	service *service.DetentionSlotService
}

// NewDetentionSlotHandler constructs a detention slot handler.
func NewDetentionSlotHandler(svc *service.DetentionSlotService) *DetentionSlotHandler {
	return &DetentionSlotHandler{service: svc}
}

// List godoc
// @Summary List detention slots
// @Tags DetentionSlots
// @Produce json
// @Param date query string false "Filter by date (YYYY-MM-DD)"
// @Param classroom_id query string false "Filter by classroom"
// @Param term_id query string false "Filter by term"
// @Param week query int false "Filter by week"
// @Param available query bool false "Only slots with free seats"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /detention-slots [get]
func (h *DetentionSlotHandler) List(c *gin.Context) {
	var filter models.DetentionSlotFilter
	if date := c.Query("date"); date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		filter.Date = &parsed
	}
	filter.ClassroomID = c.Query("classroom_id")
	filter.TermID = c.Query("term_id")
	if week := c.Query("week"); week != "" {
		if val, err := strconv.Atoi(week); err == nil {
			filter.Week = &val
		}
	}
	if available := c.Query("available"); available != "" {
		if val, err := strconv.ParseBool(available); err == nil {
			filter.AvailableOnly = val
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "50")); err == nil {
		filter.PageSize = size
	}

	slots, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, pagination)
}

// Grid godoc
// @Summary Slot toggle grid
// @Description Every coordinate of a term and classroom with its enabled state and seat counts
// @Tags DetentionSlots
// @Produce json
// @Param term_id query string true "Term ID"
// @Param classroom_id query string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /detention-slots/grid [get]
func (h *DetentionSlotHandler) Grid(c *gin.Context) {
	termID := c.Query("term_id")
	classroomID := c.Query("classroom_id")
	if termID == "" || classroomID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "term_id and classroom_id are required"))
		return
	}
	cells, cacheHit, err := h.service.Grid(c.Request.Context(), termID, classroomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, cells, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get detention slot
// @Tags DetentionSlots
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /detention-slots/{id} [get]
func (h *DetentionSlotHandler) Get(c *gin.Context) {
	slot, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Create godoc
// @Summary Create detention slots
// @Description Create one slot, or one per date when dates is set; batch creation is all-or-nothing
// @Tags DetentionSlots
// @Accept json
// @Produce json
// @Param payload body service.CreateSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /detention-slots [post]
func (h *DetentionSlotHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slots, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slots)
}

// Toggle godoc
// @Summary Toggle a slot coordinate
// @Description Enable or disable the slot at a (term, classroom, week, day, slot) coordinate; toggles are idempotent
// @Tags DetentionSlots
// @Accept json
// @Produce json
// @Param payload body service.ToggleSlotRequest true "Toggle payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /detention-slots/toggle [post]
func (h *DetentionSlotHandler) Toggle(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ToggleSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Toggle(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Update godoc
// @Summary Update detention slot
// @Tags DetentionSlots
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body service.UpdateSlotRequest true "Slot payload"
// @Success 200 {object} response.Envelope
// @Router /detention-slots/{id} [put]
func (h *DetentionSlotHandler) Update(c *gin.Context) {
	var req service.UpdateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slot, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Delete godoc
// @Summary Delete detention slot
// @Description Remove a slot; slots holding bookings cannot be deleted
// @Tags DetentionSlots
// @Produce json
// @Param id path string true "Slot ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /detention-slots/{id} [delete]
func (h *DetentionSlotHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
