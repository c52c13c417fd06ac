// Package extractor normalizes an inbound CV into plain text plus optional
// structured fields.
//
// A CV arrives either as an uploaded file with a declared media type or as a
// structured record produced by the CV generator. Structured records are the
// source of truth: when one is present the file, if any, is only validated and
// stored, never parsed. Unreadable files do not fail the submission; the
// result is marked Degraded and carries empty text.
package extractor

import (
	"context"
	"mime"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/models"
)

// MaxFileSize is the largest CV upload accepted.
const MaxFileSize = 5 << 20

const (
	MediaPDF  = "application/pdf"
	MediaDOC  = "application/msword"
	MediaDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaText = "text/plain"
)

var accepted = map[string]bool{
	MediaPDF:  true,
	MediaDOC:  true,
	MediaDOCX: true,
	MediaText: true,
}

var byExtension = map[string]string{
	".pdf":  MediaPDF,
	".doc":  MediaDOC,
	".docx": MediaDOCX,
	".txt":  MediaText,
}

// MediaTypeByName guesses the media type of a stored CV from its name.
func MediaTypeByName(name string) string {
	if mt, ok := byExtension[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return "application/octet-stream"
}

// File is an uploaded CV.
type File struct {
	Name      string
	MediaType string
	Data      []byte
}

// Input is one submission payload. Any combination may be set; Structured wins
// over File, and File wins over Text.
type Input struct {
	File       *File
	Structured *models.StructuredCV
	Text       string
}

// Result is the normalized CV.
type Result struct {
	Text       string
	Structured models.StructuredCV
	MediaType  string
	Pages      int
	Degraded   bool
}

type Extractor struct {
	log logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Extractor {
	return &Extractor{log: log}
}

// MediaType resolves the effective media type of f. A missing or generic
// declared type falls back to the file extension.
func MediaType(f *File) (string, error) {
	declared := strings.TrimSpace(f.MediaType)
	if declared != "" {
		if parsed, _, err := mime.ParseMediaType(declared); err == nil {
			declared = parsed
		}
		declared = strings.ToLower(declared)
	}

	if accepted[declared] {
		return declared, nil
	}
	if declared == "" || declared == "application/octet-stream" {
		if mt, ok := byExtension[strings.ToLower(filepath.Ext(f.Name))]; ok {
			return mt, nil
		}
	}

	shown := declared
	if shown == "" {
		shown = filepath.Ext(f.Name)
	}
	return "", apperrors.WithHint(
		apperrors.Wrapf(apperrors.ErrUnsupportedMediaType, "cv %q (%s)", f.Name, shown),
		"accepted types are PDF, Word documents and plain text",
	)
}

// Validate checks an uploaded file without reading its content.
func Validate(f *File) (string, error) {
	mt, err := MediaType(f)
	if err != nil {
		return "", err
	}
	if len(f.Data) > MaxFileSize {
		return "", apperrors.Validation("cv", "file exceeds the 5 MB limit")
	}
	return mt, nil
}

// Extract normalizes in. Only UnsupportedMediaType and oversize files are
// returned as errors; unreadable content degrades to empty text.
func (e *Extractor) Extract(ctx context.Context, in Input) (Result, error) {
	var res Result

	if in.File != nil {
		mt, err := Validate(in.File)
		if err != nil {
			return Result{}, err
		}
		res.MediaType = mt
	}

	if in.Structured != nil && !in.Structured.IsZero() {
		res.Structured = normalizeStructured(*in.Structured)
		res.Text = sanitizeText(in.Text)
		if res.Text == "" {
			res.Text = Render(res.Structured)
		}
		return res, nil
	}

	if in.File == nil {
		res.Text = sanitizeText(in.Text)
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	text, pages, err := e.readFile(res.MediaType, in.File.Data)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"file":       in.File.Name,
			"media_type": res.MediaType,
			"size":       len(in.File.Data),
		}).WithError(err).Warn("cv text extraction failed, continuing with empty text")
		res.Degraded = true
		return res, nil
	}

	res.Text = text
	res.Pages = pages
	return res, nil
}

func (e *Extractor) readFile(mediaType string, data []byte) (string, int, error) {
	switch mediaType {
	case MediaPDF:
		return readPDF(data)
	case MediaDOCX:
		text, err := readDOCX(data)
		return text, 0, err
	case MediaText:
		return sanitizeText(string(data)), 0, nil
	case MediaDOC:
		return "", 0, apperrors.Wrap(apperrors.ErrExtractionDegraded, "legacy word documents have no text extractor")
	default:
		return "", 0, apperrors.Wrapf(apperrors.ErrUnsupportedMediaType, "%s", mediaType)
	}
}

func sanitizeText(s string) string {
	s = strings.ToValidUTF8(s, "�")
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}
