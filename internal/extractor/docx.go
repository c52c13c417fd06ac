package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/moverq1337/hireboard/internal/apperrors"
)

const docxBody = "word/document.xml"

// readDOCX returns the paragraph text of an Office Open XML document.
func readDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperrors.Wrap(apperrors.Mark(err, apperrors.ErrExtractionDegraded), "open docx archive")
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", apperrors.Wrap(apperrors.ErrExtractionDegraded, "docx has no "+docxBody)
	}

	rc, err := body.Open()
	if err != nil {
		return "", apperrors.Wrap(apperrors.Mark(err, apperrors.ErrExtractionDegraded), "open docx body")
	}
	defer rc.Close()

	var (
		sb     strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(io.LimitReader(rc, 4*MaxFileSize))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", apperrors.Wrap(apperrors.Mark(err, apperrors.ErrExtractionDegraded), "parse docx body")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return sanitizeText(sb.String()), nil
}
