package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moverq1337/hireboard/internal/cvgen"
	"github.com/moverq1337/hireboard/internal/models"
)

func newCVGenerator(gen contentGenerator) *CVGenerator {
	log, _ := test.NewNullLogger()
	return NewCVGenerator(gen, log, 0)
}

func cvRequest() cvgen.Request {
	return cvgen.Request{
		JobTitle:        "Backend Engineer",
		JobDescription:  "Build payment APIs",
		JobRequirements: "Go, PostgreSQL",
		User: cvgen.UserInfo{
			Name:       "Jane Doe",
			Email:      "jane@example.com",
			Experience: "4 years at Acme writing Go services",
			Education:  "BSc Computer Science, 2019",
			Skills:     "Go, SQL, Docker",
		},
	}
}

func TestCVGeneratorGenerate(t *testing.T) {
	stub := &stubGenerator{response: "```json\n" + `{
		"name": "Jane Doe",
		"email": "jane@example.com",
		"phone": "",
		"summary": " Backend engineer focused on payments. ",
		"experience": [{"company": "Acme", "role": "Go Developer", "duration": "2021-2025", "description": "Payment APIs"}, "junk", {}],
		"education": [{"institution": "MIT", "degree": "BSc Computer Science", "year": 2019}],
		"skills": ["Go", "PostgreSQL", " "],
		"cvText": "JANE DOE\nBackend engineer"
	}` + "\n```"}
	g := newCVGenerator(stub)

	res, err := g.Generate(context.Background(), cvRequest())
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", res.CV.Name)
	assert.Equal(t, "Backend engineer focused on payments.", res.CV.Summary)
	assert.Empty(t, res.CV.Phone)
	assert.Equal(t, []models.Experience{{Company: "Acme", Role: "Go Developer", Duration: "2021-2025", Description: "Payment APIs"}}, res.CV.Experience)
	assert.Equal(t, []models.Education{{Institution: "MIT", Degree: "BSc Computer Science", Year: "2019"}}, res.CV.Education)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, res.CV.Skills)
	assert.Equal(t, "JANE DOE\nBackend engineer", res.Text)

	assert.Contains(t, stub.lastPrompt, "Backend Engineer")
	assert.Contains(t, stub.lastPrompt, "Build payment APIs")
	assert.Contains(t, stub.lastPrompt, "Go, PostgreSQL")
	assert.Contains(t, stub.lastPrompt, "Name: Jane Doe")
	assert.Contains(t, stub.lastPrompt, "Email: jane@example.com")
	assert.Contains(t, stub.lastPrompt, "Phone: Not provided")
	assert.Contains(t, stub.lastPrompt, "Skills: Go, SQL, Docker")
	assert.Contains(t, stub.lastPrompt, "Additional info: None")
	assert.NotContains(t, stub.lastPrompt, "{{")
}

func TestCVGeneratorErrors(t *testing.T) {
	tests := []struct {
		name string
		stub *stubGenerator
	}{
		{name: "generator error", stub: &stubGenerator{err: errors.New("quota exceeded")}},
		{name: "not json", stub: &stubGenerator{response: "Here is your CV: Jane Doe"}},
		{name: "empty object", stub: &stubGenerator{response: `{"skills": [], "experience": "none"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newCVGenerator(tt.stub).Generate(context.Background(), cvRequest())
			require.Error(t, err)
		})
	}
}

func TestParseCVTextOnly(t *testing.T) {
	res, err := parseCV(`{"cvText": "Jane Doe, Go developer"}`)
	require.NoError(t, err)
	assert.True(t, res.CV.IsZero())
	assert.Equal(t, "Jane Doe, Go developer", res.Text)
}
