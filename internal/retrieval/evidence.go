package retrieval

import "strings"

const (
	missingValue     = "N/A"
	unknownUniqueID  = "unknown"
	partSeparator    = "\n\n"
	sectionSeparator = "\n\n---\n\n"
)

// Candidate groups the retrieved fragments of one resume.
type Candidate struct {
	UniqueID    string
	Name        string
	Designation string
	Parts       []string
}

// Evidence is the merged retrieval context, one entry per resume in the
// order the resume was first retrieved.
type Evidence struct {
	Candidates []Candidate
}

func (e Evidence) Len() int {
	return len(e.Candidates)
}

// UniqueIDs lists the resumes present in the evidence.
func (e Evidence) UniqueIDs() []string {
	ids := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		ids = append(ids, c.UniqueID)
	}
	return ids
}

// Text renders the evidence as the answer prompt expects it.
func (e Evidence) Text() string {
	sections := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		parts := make([]string, 0, len(c.Parts))
		for _, p := range c.Parts {
			parts = append(parts, formatPart(c, p))
		}
		sections = append(sections, strings.Join(parts, partSeparator))
	}
	return strings.Join(sections, sectionSeparator)
}

func formatPart(c Candidate, content string) string {
	var b strings.Builder
	b.WriteString("Candidate Name: ")
	b.WriteString(orMissing(c.Name))
	b.WriteString("\nDesignation: ")
	b.WriteString(orMissing(c.Designation))
	b.WriteString("\nResume ID: ")
	b.WriteString(c.UniqueID)
	b.WriteString("\nResume Content:\n")
	b.WriteString(content)
	return b.String()
}

func orMissing(s string) string {
	if strings.TrimSpace(s) == "" {
		return missingValue
	}
	return s
}
