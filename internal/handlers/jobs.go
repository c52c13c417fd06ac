package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/models"
)

type jobRequest struct {
	Title        string `json:"title" binding:"required"`
	Company      string `json:"company"`
	Description  string `json:"description"`
	Requirements string `json:"requirements"`
	Category     string `json:"category"`
	Location     string `json:"location"`
	Salary       string `json:"salary"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) CreateJob(c *gin.Context) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.Validation("body", "a job needs at least a title"))
		return
	}

	job := &models.JobPosting{
		Title:        req.Title,
		Company:      req.Company,
		Description:  req.Description,
		Requirements: req.Requirements,
		Category:     req.Category,
		Location:     req.Location,
		Salary:       req.Salary,
	}
	if err := h.svc.CreateJob(c.Request.Context(), actorFrom(c), job); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (h *Handler) SetJobStatus(c *gin.Context) {
	jobID, err := idParam(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.Validation("status", "is required"))
		return
	}

	job, err := h.svc.SetJobStatus(c.Request.Context(), actorFrom(c), jobID, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) Analytics(c *gin.Context) {
	view, err := h.analytics.For(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
