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

// DetentionHandler exposes detention lifecycle endpoints.
type DetentionHandler struct {
	service *service.DetentionService
}

// NewDetentionHandler constructs a detention handler.
func NewDetentionHandler(svc *service.DetentionService) *DetentionHandler {
	return &DetentionHandler{service: svc}
}

// List godoc
// @Summary List detentions
// @Description List detentions with joined student, class and slot fields. Students see only their own.
// @Tags Detentions
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param class_id query string false "Filter by class"
// @Param status query string false "Filter by status (assigned, booked, completed)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /detentions [get]
func (h *DetentionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.DetentionFilter
	filter.StudentID = c.Query("student_id")
	filter.ClassID = c.Query("class_id")
	if status := c.Query("status"); status != "" {
		filter.Status = models.DetentionStatus(status)
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "50")); err == nil {
		filter.PageSize = size
	}

	// Students are scoped to their own detentions regardless of filters.
	if claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	}

	detentions, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detentions, pagination)
}

// Today godoc
// @Summary Detentions running today
// @Description Booked detentions whose slots fall on today's date
// @Tags Detentions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /detentions/today [get]
func (h *DetentionHandler) Today(c *gin.Context) {
	detentions, err := h.service.Today(c.Request.Context(), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detentions, nil)
}

// Get godoc
// @Summary Get detention
// @Tags Detentions
// @Produce json
// @Param id path string true "Detention ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /detentions/{id} [get]
func (h *DetentionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	detention, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims.Role == models.RoleStudent && detention.StudentID != claims.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	response.JSON(c, http.StatusOK, detention, nil)
}

// Assign godoc
// @Summary Assign detention
// @Description Create a detention in the assigned state and notify the student
// @Tags Detentions
// @Accept json
// @Produce json
// @Param payload body service.AssignDetentionRequest true "Detention payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /detentions [post]
func (h *DetentionHandler) Assign(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AssignDetentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detention, err := h.service.Assign(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detention)
}

// Book godoc
// @Summary Book detention onto a slot
// @Description Reserve a seat in a slot; rebooking moves the reservation. Students may only book their own detentions.
// @Tags Detentions
// @Accept json
// @Produce json
// @Param id path string true "Detention ID"
// @Param payload body service.BookDetentionRequest true "Booking payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /detentions/{id}/book [post]
func (h *DetentionHandler) Book(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.BookDetentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	asStudent := claims.Role == models.RoleStudent
	detention, err := h.service.Book(c.Request.Context(), c.Param("id"), req, claims.UserID, asStudent)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detention, nil)
}

// Resolve godoc
// @Summary Record detention outcome
// @Description Mark a booked detention complete, incomplete or absent; incomplete and absent release the seat for rebooking
// @Tags Detentions
// @Accept json
// @Produce json
// @Param id path string true "Detention ID"
// @Param payload body service.ResolveDetentionRequest true "Outcome payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /detentions/{id}/resolve [post]
func (h *DetentionHandler) Resolve(c *gin.Context) {
	var req service.ResolveDetentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detention, err := h.service.Resolve(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detention, nil)
}

// Delete godoc
// @Summary Delete detention
// @Description Remove a detention, releasing its slot reservation when one is held
// @Tags Detentions
// @Produce json
// @Param id path string true "Detention ID"
// @Success 204
// @Router /detentions/{id} [delete]
func (h *DetentionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
