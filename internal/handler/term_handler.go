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

// TermHandler exposes term endpoints.
type TermHandler struct {
	service *service.TermService
}

// NewTermHandler constructs a term handler.
func NewTermHandler(svc *service.TermService) *TermHandler {
	return &TermHandler{service: svc}
}

// List godoc
// @Summary List terms
// @Description List terms with filters
// @Tags Terms
// @Produce json
// @Param type query string false "Filter by type (school_term or holiday)"
// @Param is_current query bool false "Filter by current flag"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /terms [get]
func (h *TermHandler) List(c *gin.Context) {
	var filter models.TermFilter
	if termType := c.Query("type"); termType != "" {
		filter.Type = models.TermType(termType)
	}
	if isCurrent := c.Query("is_current"); isCurrent != "" {
		if val, err := strconv.ParseBool(isCurrent); err == nil {
			filter.IsCurrent = &val
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	terms, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, terms, pagination)
}

// GetCurrent godoc
// @Summary Get current term
// @Tags Terms
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /terms/current [get]
func (h *TermHandler) GetCurrent(c *gin.Context) {
	term, err := h.service.GetCurrent(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// CurrentWeek godoc
// @Summary Current week of the current term
// @Description Returns the current term and the 1-based week number of today, clamped to the term range
// @Tags Terms
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /terms/current/week [get]
func (h *TermHandler) CurrentWeek(c *gin.Context) {
	term, week, err := h.service.CurrentWeek(c.Request.Context(), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"term": term, "week": week}, nil)
}

// Get godoc
// @Summary Get term
// @Tags Terms
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /terms/{id} [get]
func (h *TermHandler) Get(c *gin.Context) {
	term, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// Create godoc
// @Summary Create term
// @Tags Terms
// @Accept json
// @Produce json
// @Param payload body service.CreateTermRequest true "Term payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /terms [post]
func (h *TermHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	term, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, term)
}

// Update godoc
// @Summary Update term
// @Tags Terms
// @Accept json
// @Produce json
// @Param id path string true "Term ID"
// @Param payload body service.UpdateTermRequest true "Term payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /terms/{id} [put]
func (h *TermHandler) Update(c *gin.Context) {
	var req service.UpdateTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	term, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// Activate godoc
// @Summary Activate term
// @Description Make a term current; activating a first-term-of-year rolls student years forward
// @Tags Terms
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /terms/{id}/activate [post]
func (h *TermHandler) Activate(c *gin.Context) {
	activation, err := h.service.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activation, nil)
}

// Delete godoc
// @Summary Delete term
// @Tags Terms
// @Produce json
// @Param id path string true "Term ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /terms/{id} [delete]
func (h *TermHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
