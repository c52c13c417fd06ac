package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/scoring"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// Scorer asks Gemini to rate a CV against a job posting.
type Scorer struct {
	generator contentGenerator
	log       logrus.FieldLogger
	maxLogLen int
}

var _ scoring.Scorer = (*Scorer)(nil)

func NewScorer(generator contentGenerator, log logrus.FieldLogger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Scorer{generator: generator, log: log, maxLogLen: maxLogLength}
}

func (s *Scorer) Score(ctx context.Context, req scoring.Request) (scoring.Result, error) {
	prompt := buildPrompt(req)

	s.log.WithFields(logrus.Fields{
		"job_title":      req.JobTitle,
		"prompt_length":  utf8.RuneCountInString(prompt),
		"prompt_preview": truncate(prompt, s.maxLogLen),
	}).Debug("gemini generate content request")

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return scoring.Result{}, err
	}

	s.log.WithFields(logrus.Fields{
		"job_title":        req.JobTitle,
		"response_length":  utf8.RuneCountInString(raw),
		"response_preview": truncate(raw, s.maxLogLen),
	}).Debug("gemini generate content response")

	return parseResponse(raw)
}

func buildPrompt(req scoring.Request) string {
	r := strings.NewReplacer(
		"{{JOB_TITLE}}", req.JobTitle,
		"{{JOB_DESCRIPTION}}", req.JobDescription,
		"{{JOB_REQUIREMENTS}}", req.JobRequirements,
		"{{CV_TEXT}}", req.CVText,
	)
	return r.Replace(promptTemplate)
}

func parseResponse(raw string) (scoring.Result, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return scoring.Result{}, apperrors.Wrap(err, "parse gemini response")
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		return scoring.Result{}, apperrors.Newf("gemini response has no usable score: %v", data["score"])
	}

	return scoring.Result{
		Score:     scoring.ClampScore(score),
		Analysis:  coerceString(data["analysis"]),
		Strengths: coerceStrings(data["strengths"]),
		Gaps:      coerceStrings(data["gaps"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "%"))
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func coerceStrings(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}
