package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/cvgen"
	"github.com/moverq1337/hireboard/internal/models"
)

//go:embed cv_prompt.md
var cvPromptTemplate string

// CVGenerator asks Gemini to draft a CV tailored to a job posting.
type CVGenerator struct {
	generator contentGenerator
	log       logrus.FieldLogger
	maxLogLen int
}

var _ cvgen.Generator = (*CVGenerator)(nil)

func NewCVGenerator(generator contentGenerator, log logrus.FieldLogger, maxLogLength int) *CVGenerator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &CVGenerator{generator: generator, log: log, maxLogLen: maxLogLength}
}

func (g *CVGenerator) Generate(ctx context.Context, req cvgen.Request) (cvgen.Result, error) {
	prompt := buildCVPrompt(req)

	g.log.WithFields(logrus.Fields{
		"job_title":     req.JobTitle,
		"prompt_length": utf8.RuneCountInString(prompt),
	}).Debug("gemini cv request")

	raw, err := g.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return cvgen.Result{}, err
	}

	g.log.WithFields(logrus.Fields{
		"job_title":        req.JobTitle,
		"response_length":  utf8.RuneCountInString(raw),
		"response_preview": truncate(raw, g.maxLogLen),
	}).Debug("gemini cv response")

	return parseCV(raw)
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

func buildCVPrompt(req cvgen.Request) string {
	u := req.User
	r := strings.NewReplacer(
		"{{JOB_TITLE}}", req.JobTitle,
		"{{JOB_DESCRIPTION}}", req.JobDescription,
		"{{JOB_REQUIREMENTS}}", req.JobRequirements,
		"{{NAME}}", u.Name,
		"{{EMAIL}}", u.Email,
		"{{PHONE}}", orDefault(u.Phone, "Not provided"),
		"{{EXPERIENCE}}", orDefault(u.Experience, "Not provided"),
		"{{EDUCATION}}", orDefault(u.Education, "Not provided"),
		"{{SKILLS}}", orDefault(u.Skills, "Not provided"),
		"{{ADDITIONAL_INFO}}", orDefault(u.AdditionalInfo, "None"),
	)
	return r.Replace(cvPromptTemplate)
}

func parseCV(raw string) (cvgen.Result, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return cvgen.Result{}, apperrors.Wrap(err, "parse gemini cv response")
	}

	cv := models.StructuredCV{
		Name:    coerceString(data["name"]),
		Email:   coerceString(data["email"]),
		Phone:   coerceString(data["phone"]),
		Summary: coerceString(data["summary"]),
		Skills:  coerceStrings(data["skills"]),
	}
	for _, item := range objects(data["experience"]) {
		exp := models.Experience{
			Company:     coerceString(item["company"]),
			Role:        coerceString(item["role"]),
			Duration:    coerceString(item["duration"]),
			Description: coerceString(item["description"]),
		}
		if exp != (models.Experience{}) {
			cv.Experience = append(cv.Experience, exp)
		}
	}
	for _, item := range objects(data["education"]) {
		edu := models.Education{
			Institution: coerceString(item["institution"]),
			Degree:      coerceString(item["degree"]),
			Year:        coerceString(item["year"]),
		}
		if edu != (models.Education{}) {
			cv.Education = append(cv.Education, edu)
		}
	}

	res := cvgen.Result{CV: cv, Text: coerceString(data["cvText"])}
	if res.CV.IsZero() && res.Text == "" {
		return cvgen.Result{}, apperrors.New("gemini response has no cv")
	}
	return res, nil
}

// objects keeps the JSON objects of a list; anything else is dropped.
func objects(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
