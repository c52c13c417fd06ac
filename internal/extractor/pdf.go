package extractor

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/moverq1337/hireboard/internal/apperrors"
)

func init() {
	// pdfcpu would otherwise install a config dir under the user's home.
	model.ConfigPath = "disable"
}

// readPDF validates the document structure with pdfcpu and pulls the plain
// text with ledongthuc/pdf.
func readPDF(data []byte) (text string, pages int, err error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pages, err = api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return "", 0, apperrors.Wrap(apperrors.Mark(err, apperrors.ErrExtractionDegraded), "validate pdf")
	}

	// The text reader panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			text, pages = "", 0
			err = apperrors.Wrap(apperrors.ErrExtractionDegraded, fmt.Sprintf("pdf reader panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, apperrors.Wrap(apperrors.Mark(err, apperrors.ErrExtractionDegraded), "open pdf")
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", 0, apperrors.Wrap(apperrors.Mark(err, apperrors.ErrExtractionDegraded), "extract pdf text")
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", 0, apperrors.Wrap(apperrors.Mark(err, apperrors.ErrExtractionDegraded), "read pdf text")
	}

	return sanitizeText(buf.String()), pages, nil
}
