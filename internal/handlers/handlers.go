// Package handlers is the HTTP surface of hireboard.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/moverq1337/hireboard/internal/analytics"
	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/models"
	"github.com/moverq1337/hireboard/internal/service"
)

// Identity headers set by the auth gateway in front of the service.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	actorKey = "actor"
)

type Handler struct {
	svc       *service.Service
	analytics *analytics.Aggregator
	limiter   Limiter
	limit     int
	log       logrus.FieldLogger
}

// New builds the handler set. limiter may be nil, and a limit of zero turns
// rate limiting of submissions and CV drafts off.
func New(svc *service.Service, agg *analytics.Aggregator, limiter Limiter, submissionsPerMinute int, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, analytics: agg, limiter: limiter, limit: submissionsPerMinute, log: log}
}

func SetupRoutes(r *gin.Engine, h *Handler) {
	r.GET("/health", HealthCheck)

	api := r.Group("", RequireActor())
	api.POST("/jobs", h.CreateJob)
	api.PATCH("/jobs/:id/status", h.SetJobStatus)
	api.POST("/jobs/:id/applications", h.Submit)
	api.POST("/jobs/:id/cv/generate", h.GenerateCV)
	api.GET("/jobs/:id/applicants", h.ListApplicants)
	api.GET("/applications/my", h.MyApplications)
	api.PUT("/applications/:id/status", h.UpdateStatus)
	api.DELETE("/applications/:id", h.Delete)
	api.GET("/applications/:id/cv", h.CV)
	api.GET("/analytics", h.Analytics)
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RequestLogger logs one line per request.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if a, ok := c.Get(actorKey); ok {
			entry = entry.WithField("actor_id", a.(models.Actor).ID)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("request failed")
			return
		}
		entry.Info("request handled")
	}
}

// RequireActor reads the caller identity from the gateway headers and rejects
// requests without a valid one.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(strings.TrimSpace(c.GetHeader(HeaderActorID)))
		role := models.Role(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole))))
		if err != nil || id == uuid.Nil || (role != models.RoleEmployer && role != models.RoleApplicant) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or invalid actor identity",
				"code":  "unauthenticated",
			})
			return
		}
		c.Set(actorKey, models.Actor{ID: id, Role: role})
		c.Next()
	}
}

func actorFrom(c *gin.Context) models.Actor {
	if a, ok := c.Get(actorKey); ok {
		return a.(models.Actor)
	}
	return models.Actor{}
}

func idParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.Validation(name, "must be a uuid")
	}
	return id, nil
}

var statusByKind = map[apperrors.ErrKind]int{
	apperrors.KindValidation:       http.StatusBadRequest,
	apperrors.KindNotFound:         http.StatusNotFound,
	apperrors.KindAuthorization:    http.StatusForbidden,
	apperrors.KindDuplicate:        http.StatusConflict,
	apperrors.KindJobNotAccepting:  http.StatusConflict,
	apperrors.KindUnsupportedMedia: http.StatusUnsupportedMediaType,
	apperrors.KindCVGeneration:     http.StatusServiceUnavailable,
}

func (h *Handler) respondError(c *gin.Context, err error) {
	kind := apperrors.Kind(err)
	code, ok := statusByKind[kind]
	if !ok {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": apperrors.KindInternal})
		return
	}

	body := gin.H{"error": err.Error(), "code": kind}
	if field, ok := apperrors.Field(err); ok {
		body["field"] = field
	}
	c.JSON(code, body)
}
