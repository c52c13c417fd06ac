package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/extractor"
	"github.com/moverq1337/hireboard/internal/models"
	"github.com/moverq1337/hireboard/internal/service"
)

// submitRequest is the JSON form of a submission, used by clients that send a
// generated CV instead of a file.
type submitRequest struct {
	CVData      *models.StructuredCV `json:"cvData"`
	CVText      string               `json:"cvText"`
	CoverLetter string               `json:"coverLetter"`
}

// Submit accepts multipart/form-data with an optional "cv" file and the
// "cvData" (JSON), "cvText" and "coverLetter" fields, or the same fields as
// a JSON body.
func (h *Handler) Submit(c *gin.Context) {
	actor := actorFrom(c)
	jobID, err := idParam(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.limiter != nil && h.limit > 0 {
		if !h.limiter.Allow("apply:"+actor.ID.String(), h.limit, time.Minute) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many submissions, try again later", "code": "rate_limited"})
			return
		}
	}

	in, err := submitInput(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	in.JobID = jobID

	app, err := h.svc.Submit(c.Request.Context(), actor, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

func submitInput(c *gin.Context) (service.SubmitInput, error) {
	var in service.SubmitInput

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return in, apperrors.Validation("body", "must be a JSON submission")
		}
		in.Structured = req.CVData
		in.CVText = req.CVText
		in.CoverLetter = req.CoverLetter
		return in, nil
	}

	in.CVText = c.PostForm("cvText")
	in.CoverLetter = c.PostForm("coverLetter")
	if raw := strings.TrimSpace(c.PostForm("cvData")); raw != "" {
		var cv models.StructuredCV
		if err := json.Unmarshal([]byte(raw), &cv); err != nil {
			return in, apperrors.Validation("cvData", "must be a JSON CV record")
		}
		in.Structured = &cv
	}

	fh, err := c.FormFile("cv")
	switch {
	case err == nil:
		file, err := readUpload(fh)
		if err != nil {
			return in, err
		}
		in.File = file
	case apperrors.IsAny(err, http.ErrMissingFile, http.ErrNotMultipart):
	default:
		return in, apperrors.Validation("cv", "could not read the upload")
	}
	return in, nil
}

func readUpload(fh *multipart.FileHeader) (*extractor.File, error) {
	if fh.Size > extractor.MaxFileSize {
		return nil, apperrors.Validation("cv", "file exceeds the 5 MiB limit")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.Wrap(err, "open upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, extractor.MaxFileSize+1))
	if err != nil {
		return nil, apperrors.Wrap(err, "read upload")
	}
	return &extractor.File{
		Name:      fh.Filename,
		MediaType: fh.Header.Get("Content-Type"),
		Data:      data,
	}, nil
}

func (h *Handler) ListApplicants(c *gin.Context) {
	jobID, err := idParam(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	apps, err := h.svc.ListApplicants(c.Request.Context(), actorFrom(c), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

func (h *Handler) MyApplications(c *gin.Context) {
	apps, err := h.svc.MyApplications(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.Validation("status", "is required"))
		return
	}

	app, err := h.svc.UpdateStatus(c.Request.Context(), actorFrom(c), id, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.svc.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CV streams the uploaded file, or returns the structured or plain-text CV as JSON.
func (h *Handler) CV(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	doc, err := h.svc.CV(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	switch doc.Kind {
	case service.CVFile:
		defer doc.File.Close()
		c.DataFromReader(http.StatusOK, -1, doc.MediaType, doc.File, map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", doc.FileName),
		})
	case service.CVStructured:
		c.JSON(http.StatusOK, gin.H{"kind": doc.Kind, "cv_data": doc.Structured, "cv_text": doc.Text})
	default:
		c.JSON(http.StatusOK, gin.H{"kind": doc.Kind, "cv_text": doc.Text})
	}
}
