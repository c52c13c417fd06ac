package extractor

import (
	"strings"

	"github.com/moverq1337/hireboard/internal/models"
)

// Render produces the plain-text form of a structured CV. Output depends only
// on the field values, so equal records always render identically.
func Render(cv models.StructuredCV) string {
	var b strings.Builder
	line := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}

	line(cv.Name)
	line(joinNonEmpty(" | ", cv.Email, cv.Phone))
	if cv.Summary != "" {
		line("Summary: " + cv.Summary)
	}

	if len(cv.Experience) > 0 {
		line("Experience:")
		for _, e := range cv.Experience {
			head := joinNonEmpty(" at ", e.Role, e.Company)
			if e.Duration != "" {
				head += " (" + e.Duration + ")"
			}
			line("- " + joinNonEmpty(": ", head, e.Description))
		}
	}

	if len(cv.Education) > 0 {
		line("Education:")
		for _, e := range cv.Education {
			entry := joinNonEmpty(", ", e.Degree, e.Institution)
			if e.Year != "" {
				entry += " (" + e.Year + ")"
			}
			line("- " + entry)
		}
	}

	if len(cv.Skills) > 0 {
		line("Skills: " + strings.Join(cv.Skills, ", "))
	}

	return strings.TrimSpace(b.String())
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// normalizeStructured trims every field and turns the skill list into a set,
// keeping the first spelling of each skill.
func normalizeStructured(cv models.StructuredCV) models.StructuredCV {
	out := models.StructuredCV{
		Name:    strings.TrimSpace(cv.Name),
		Email:   strings.TrimSpace(cv.Email),
		Phone:   strings.TrimSpace(cv.Phone),
		Summary: strings.TrimSpace(cv.Summary),
	}
	for _, e := range cv.Experience {
		out.Experience = append(out.Experience, models.Experience{
			Company:     strings.TrimSpace(e.Company),
			Role:        strings.TrimSpace(e.Role),
			Duration:    strings.TrimSpace(e.Duration),
			Description: strings.TrimSpace(e.Description),
		})
	}
	for _, e := range cv.Education {
		out.Education = append(out.Education, models.Education{
			Institution: strings.TrimSpace(e.Institution),
			Degree:      strings.TrimSpace(e.Degree),
			Year:        strings.TrimSpace(e.Year),
		})
	}
	seen := make(map[string]bool, len(cv.Skills))
	for _, s := range cv.Skills {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out.Skills = append(out.Skills, s)
	}
	return out
}
