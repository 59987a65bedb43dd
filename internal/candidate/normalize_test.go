package candidate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func TestNormalizeSkills(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "splits parenthetical groups and dedupes case-insensitively",
			in:   []string{"Python (Django, Flask)", "python"},
			want: []string{"Django", "Flask", "Python"},
		},
		{
			name: "drops empty tokens",
			in:   []string{" , ( ) ", "Go,,", ""},
			want: []string{"Go"},
		},
		{
			name: "sorts case-insensitively keeping first spelling",
			in:   []string{"sql", "AWS", "Docker", "SQL", "aws"},
			want: []string{"AWS", "Docker", "sql"},
		},
		{
			name: "normalizes compatibility forms",
			in:   []string{"Ｒｅａｃｔ", "react"},
			want: []string{"React"},
		},
		{
			name: "nil input",
			in:   nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeSkills(tt.in))
		})
	}
}

func TestNormalizeSkillsIsIdempotent(t *testing.T) {
	t.Parallel()

	once := NormalizeSkills([]string{"Java (Spring, Hibernate)", "kotlin", "Java"})
	assert.Equal(t, once, NormalizeSkills(once))
}

func TestKeywordsUnion(t *testing.T) {
	t.Parallel()

	skills := NormalizeSkills([]string{"Go"})
	projects := []Project{{Name: "svc", Technologies: []string{"Go", "gRPC"}}}

	assert.Equal(t, []string{"Go", "gRPC"}, Keywords(skills, projects, nil))
}

func TestKeywordsIncludesCertifications(t *testing.T) {
	t.Parallel()

	keywords := Keywords(
		[]string{"Kubernetes"},
		[]Project{{Technologies: []string{" terraform ", "kubernetes"}}},
		[]Certification{{Name: "CKA"}, {Name: ""}, {Name: "AWS Solutions Architect"}},
	)

	assert.Equal(t, []string{"AWS Solutions Architect", "CKA", "Kubernetes", "terraform"}, keywords)
	for _, skill := range []string{"Kubernetes"} {
		assert.Contains(t, keywords, skill)
	}
}

func TestNormalizeSparseInput(t *testing.T) {
	t.Parallel()

	record := Normalize(Fields{}, "resume-1", fixedNow)

	assert.Equal(t, "resume-1", record.UniqueID)
	assert.Equal(t, "CVs/resume-1", record.CVDirectoryLink)
	assert.Equal(t, StatusNew, record.Status)
	assert.Equal(t, fixedNow, record.CreatedAt)
	assert.Equal(t, fixedNow, record.UpdatedAt)
	assert.Zero(t, record.CompatibilityAnalysis.OverallScore)

	data, err := json.Marshal(record)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "null")
}

func TestNormalizeMapsExtractedFields(t *testing.T) {
	t.Parallel()

	fields := Fields{
		Name:        " Jane Doe ",
		Email:       "jane@example.com",
		Phone:       "+1 555 0100",
		Location:    "Berlin",
		LinkedIn:    "linkedin.com/in/jane",
		GitHub:      "github.com/jane",
		Designation: "Backend Engineer",
		Skills:      []string{"Python (Django, Flask)", "python"},
		Projects: []Project{
			{Name: "api", Technologies: []string{"Django", "PostgreSQL"}},
			{Name: "cli"},
		},
		Certifications: []Certification{{Name: "CKA", Issuer: "CNCF"}},
		Languages:      []string{"English", " "},
		WorkExperience: []WorkExperience{{CompanyName: "Acme", Position: "Engineer"}},
	}

	record := Normalize(fields, "jane", fixedNow)

	assert.Equal(t, "Jane Doe", record.Name)
	assert.Equal(t, "+1 555 0100", record.PrimaryPhone)
	assert.Equal(t, "github.com/jane", record.SocialProfiles.GitHub)
	assert.Equal(t, "linkedin.com/in/jane", record.SocialProfiles.LinkedIn)
	assert.Equal(t, []string{"Django", "Flask", "Python"}, record.TechnicalSkills)
	assert.Equal(t, []string{"CKA", "Django", "Flask", "PostgreSQL", "Python"}, record.Keywords)
	assert.Equal(t, []string{"English"}, record.Languages)
	assert.NotNil(t, record.Projects[1].Technologies)
	assert.NotNil(t, record.WorkExperience[0].Responsibilities)
}

func TestNormalizeIsDeterministicForFixedClock(t *testing.T) {
	t.Parallel()

	fields := Fields{Name: "A", Skills: []string{"b", "A", "c (d)"}}
	assert.Equal(t, Normalize(fields, "x", fixedNow), Normalize(fields, "x", fixedNow))
}
