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

// CurriculumHandler exposes topic and assessment endpoints.
type CurriculumHandler struct {
	service *service.CurriculumService
}

// NewCurriculumHandler constructs a curriculum handler.
func NewCurriculumHandler(svc *service.CurriculumService) *CurriculumHandler {
	return &CurriculumHandler{service: svc}
}

func curriculumFilter(c *gin.Context) models.CurriculumFilter {
	filter := models.CurriculumFilter{
		Search:    c.Query("search"),
		Year:      c.Query("year"),
		TermLabel: c.Query("term_label"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	return filter
}

// ListTopics godoc
// @Summary List topics
// @Tags Curriculum
// @Produce json
// @Param search query string false "Search by name"
// @Param year query string false "Filter by year label"
// @Param term_label query string false "Filter by term label (T1-T4)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /topics [get]
func (h *CurriculumHandler) ListTopics(c *gin.Context) {
	topics, pagination, err := h.service.ListTopics(c.Request.Context(), curriculumFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topics, pagination)
}

// GetTopic godoc
// @Summary Get topic
// @Tags Curriculum
// @Produce json
// @Param id path string true "Topic ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /topics/{id} [get]
func (h *CurriculumHandler) GetTopic(c *gin.Context) {
	topic, err := h.service.GetTopic(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topic, nil)
}

// CreateTopic godoc
// @Summary Create topic
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param payload body service.CreateTopicRequest true "Topic payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /topics [post]
func (h *CurriculumHandler) CreateTopic(c *gin.Context) {
	var req service.CreateTopicRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	topic, err := h.service.CreateTopic(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, topic)
}

// UpdateTopic godoc
// @Summary Update topic
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param id path string true "Topic ID"
// @Param payload body service.UpdateTopicRequest true "Topic payload"
// @Success 200 {object} response.Envelope
// @Router /topics/{id} [put]
func (h *CurriculumHandler) UpdateTopic(c *gin.Context) {
	var req service.UpdateTopicRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	topic, err := h.service.UpdateTopic(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topic, nil)
}

// DeleteTopic godoc
// @Summary Delete topic
// @Tags Curriculum
// @Produce json
// @Param id path string true "Topic ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /topics/{id} [delete]
func (h *CurriculumHandler) DeleteTopic(c *gin.Context) {
	if err := h.service.DeleteTopic(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListAssessments godoc
// @Summary List assessments
// @Tags Curriculum
// @Produce json
// @Param search query string false "Search by name"
// @Param year query string false "Filter by year label"
// @Param term_label query string false "Filter by term label (T1-T4)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assessments [get]
func (h *CurriculumHandler) ListAssessments(c *gin.Context) {
	assessments, pagination, err := h.service.ListAssessments(c.Request.Context(), curriculumFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessments, pagination)
}

// GetAssessment godoc
// @Summary Get assessment
// @Tags Curriculum
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assessments/{id} [get]
func (h *CurriculumHandler) GetAssessment(c *gin.Context) {
	assessment, err := h.service.GetAssessment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment, nil)
}

// CreateAssessment godoc
// @Summary Create assessment
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param payload body service.CreateAssessmentRequest true "Assessment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /assessments [post]
func (h *CurriculumHandler) CreateAssessment(c *gin.Context) {
	var req service.CreateAssessmentRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	assessment, err := h.service.CreateAssessment(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assessment)
}

// UpdateAssessment godoc
// @Summary Update assessment
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param id path string true "Assessment ID"
// @Param payload body service.UpdateAssessmentRequest true "Assessment payload"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id} [put]
func (h *CurriculumHandler) UpdateAssessment(c *gin.Context) {
	var req service.UpdateAssessmentRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	assessment, err := h.service.UpdateAssessment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment, nil)
}

// DeleteAssessment godoc
// @Summary Delete assessment
// @Tags Curriculum
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /assessments/{id} [delete]
func (h *CurriculumHandler) DeleteAssessment(c *gin.Context) {
	if err := h.service.DeleteAssessment(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
