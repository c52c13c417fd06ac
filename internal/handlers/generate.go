package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/cvgen"
)

type generateCVRequest struct {
	Name           string `json:"name" binding:"required"`
	Email          string `json:"email" binding:"required"`
	Phone          string `json:"phone"`
	Experience     string `json:"experience"`
	Education      string `json:"education"`
	Skills         string `json:"skills"`
	AdditionalInfo string `json:"additionalInfo"`
}

// GenerateCV drafts a CV for the job from the applicant's details. The draft
// is returned as {"cvData", "cvText"} and can be posted to the submission
// endpoint as is.
func (h *Handler) GenerateCV(c *gin.Context) {
	actor := actorFrom(c)
	jobID, err := idParam(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req generateCVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.Validation("body", "name and email are required"))
		return
	}

	if h.limiter != nil && h.limit > 0 {
		if !h.limiter.Allow("cvgen:"+actor.ID.String(), h.limit, time.Minute) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many cv drafts, try again later", "code": "rate_limited"})
			return
		}
	}

	res, err := h.svc.GenerateCV(c.Request.Context(), actor, jobID, cvgen.UserInfo{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Experience:     req.Experience,
		Education:      req.Education,
		Skills:         req.Skills,
		AdditionalInfo: req.AdditionalInfo,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
