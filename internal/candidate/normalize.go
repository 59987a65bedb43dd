package candidate

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const cvDirectoryPrefix = "CVs/"

// Normalize builds the canonical record for one resume. It never fails: any
// field missing from f is left empty and every list is non-nil.
func Normalize(f Fields, uniqueID string, now time.Time) Record {
	now = now.UTC()
	skills := NormalizeSkills(f.Skills)

	return Record{
		Name:            clean(f.Name),
		Email:           clean(f.Email),
		PrimaryPhone:    clean(f.Phone),
		CVDirectoryLink: cvDirectoryPrefix + uniqueID,
		UniqueID:        uniqueID,
		Designation:     clean(f.Designation),
		Location:        clean(f.Location),
		SocialProfiles: SocialProfiles{
			GitHub:   clean(f.GitHub),
			LinkedIn: clean(f.LinkedIn),
			Others:   []string{},
		},
		Education:       orEmpty(f.Education),
		WorkExperience:  workExperience(f.WorkExperience),
		TechnicalSkills: skills,
		SoftSkills:      []string{},
		Languages:       cleanList(f.Languages),
		Certifications:  orEmpty(f.Certifications),
		Projects:        projects(f.Projects),
		Keywords:        Keywords(skills, f.Projects, f.Certifications),
		CreatedAt:       now,
		UpdatedAt:       now,
		Status:          StatusNew,
		CompatibilityAnalysis: CompatibilityAnalysis{
			Analysis: Analysis{
				Strengths:        []string{},
				Gaps:             []string{},
				MatchingPoints:   []string{},
				ImprovementAreas: []string{},
			},
		},
	}
}

// NormalizeSkills splits skill strings on parentheses and commas, so
// "Python (Django, Flask)" yields Python, Django and Flask. Tokens are
// NFKC-normalized and trimmed, empty tokens are dropped, and the result is
// deduplicated and sorted case-insensitively. The first spelling seen wins.
func NormalizeSkills(skills []string) []string {
	set := newFoldSet()
	for _, skill := range skills {
		for _, token := range strings.FieldsFunc(skill, isSkillDelimiter) {
			set.add(token)
		}
	}
	return set.sorted()
}

// Keywords is the case-insensitive union of already normalized skills,
// project technologies and certification names, sorted case-insensitively.
func Keywords(skills []string, projects []Project, certifications []Certification) []string {
	set := newFoldSet()
	for _, s := range skills {
		set.add(s)
	}
	for _, p := range projects {
		for _, tech := range p.Technologies {
			set.add(tech)
		}
	}
	for _, c := range certifications {
		set.add(c.Name)
	}
	return set.sorted()
}

func isSkillDelimiter(r rune) bool {
	return r == '(' || r == ')' || r == ','
}

// foldSet keeps the first spelling of every case-insensitively distinct value.
type foldSet struct {
	caser  cases.Caser
	values []string
	keys   map[string]string
}

func newFoldSet() *foldSet {
	return &foldSet{caser: cases.Fold(), keys: make(map[string]string)}
}

func (s *foldSet) add(value string) {
	value = clean(value)
	if value == "" {
		return
	}
	key := s.caser.String(value)
	if _, ok := s.keys[key]; ok {
		return
	}
	s.keys[key] = value
	s.values = append(s.values, value)
}

func (s *foldSet) sorted() []string {
	out := make([]string, len(s.values))
	copy(out, s.values)

	folded := make(map[string]string, len(out))
	for key, value := range s.keys {
		folded[value] = key
	}

	sort.SliceStable(out, func(i, j int) bool {
		return folded[out[i]] < folded[out[j]]
	})
	return out
}

func clean(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = clean(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func workExperience(in []WorkExperience) []WorkExperience {
	out := make([]WorkExperience, 0, len(in))
	for _, w := range in {
		w.Responsibilities = orEmpty(w.Responsibilities)
		out = append(out, w)
	}
	return out
}

func projects(in []Project) []Project {
	out := make([]Project, 0, len(in))
	for _, p := range in {
		p.Technologies = orEmpty(p.Technologies)
		out = append(out, p)
	}
	return out
}

func orEmpty[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
