package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spigell/resume-query/internal/index"
)

func hit(id, uid, name, text string) index.Hit {
	return index.Hit{Chunk: index.Chunk{ID: id, UniqueID: uid, Name: name, Designation: "Engineer", Text: text}}
}

func TestMergeKeepsFirstSeenOrder(t *testing.T) {
	t.Parallel()

	ev := Merge([]index.Hit{
		hit("1", "r2", "Bob", "b-one"),
		hit("2", "r1", "Alice", "a-one"),
		hit("3", "r2", "Bob", "b-two"),
		hit("4", "", "", "orphan"),
	})

	assert.Equal(t, []string{"r2", "r1", "unknown"}, ev.UniqueIDs())
	assert.Equal(t, []string{"b-one", "b-two"}, ev.Candidates[0].Parts)
	assert.Equal(t, []string{"a-one"}, ev.Candidates[1].Parts)
}

func TestEvidenceText(t *testing.T) {
	t.Parallel()

	ev := Evidence{Candidates: []Candidate{
		{UniqueID: "r1", Name: "Alice", Designation: "Engineer", Parts: []string{"first", "second"}},
		{UniqueID: "r2", Parts: []string{"third"}},
	}}

	want := "Candidate Name: Alice\nDesignation: Engineer\nResume ID: r1\nResume Content:\nfirst" +
		"\n\n" +
		"Candidate Name: Alice\nDesignation: Engineer\nResume ID: r1\nResume Content:\nsecond" +
		"\n\n---\n\n" +
		"Candidate Name: N/A\nDesignation: N/A\nResume ID: r2\nResume Content:\nthird"

	assert.Equal(t, want, ev.Text())
	assert.Empty(t, Evidence{}.Text())
}
