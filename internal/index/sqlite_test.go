package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChunks(n int) ([]Chunk, [][]float64) {
	chunks := make([]Chunk, 0, n)
	vectors := make([][]float64, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, Chunk{
			ID:       fmt.Sprintf("c%d", i),
			UniqueID: fmt.Sprintf("r%d", i%2),
			Name:     "N",
			Text:     fmt.Sprintf("chunk %d", i),
			Seq:      i,
			Start:    i * 10,
			End:      i*10 + 10,
		})
		vectors = append(vectors, []float64{float64(i), 1})
	}
	return chunks, vectors
}

func TestSQLiteStoreReplaceAndSearch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "idx", "index.db")

	store, err := Create(ctx, path, nil)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, path, store.Path())

	chunks := []Chunk{
		{ID: "a", UniqueID: "r1", Name: "Alice", Designation: "Eng", Text: "django", Seq: 0, Start: 0, End: 6},
		{ID: "b", UniqueID: "r2", Name: "Bob", Designation: "Des", Text: "figma", Seq: 0, Start: 0, End: 5},
		{ID: "c", UniqueID: "r1", Name: "Alice", Designation: "Eng", Text: "python", Seq: 1, Start: 6, End: 12},
	}
	vectors := [][]float64{{1, 0}, {0, 1}, {0.8, 0.6}}
	require.NoError(t, store.Replace(ctx, chunks, vectors))

	hits, err := store.Search(ctx, []float64{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "c", hits[1].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.InDelta(t, 0.8, hits[1].Score, 1e-9)

	reopened, err := Load(ctx, path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 3, reopened.Len())
	again, err := reopened.Search(ctx, []float64{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, hits, again)

	_, err = reopened.Search(ctx, []float64{1, 0, 0}, 2)
	assert.Error(t, err)
}

func TestSQLiteStoreReplaceIsWholesale(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	store, err := Create(ctx, path, nil)
	require.NoError(t, err)
	defer store.Close()

	chunks, vectors := sampleChunks(5)
	require.NoError(t, store.Replace(ctx, chunks, vectors))
	require.NoError(t, store.Replace(ctx, chunks[:2], vectors[:2]))
	assert.Equal(t, 2, store.Len())

	require.NoError(t, store.Reload(ctx))
	assert.Equal(t, 2, store.Len())

	assert.Error(t, store.Replace(ctx, chunks, vectors[:1]))
	assert.Equal(t, 2, store.Len())
}

func TestLoadUnavailable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := Load(ctx, filepath.Join(dir, "missing.db"), nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	emptyPath := filepath.Join(dir, "empty.db")
	store, err := Create(ctx, emptyPath, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = Load(ctx, emptyPath, nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	garbage := filepath.Join(dir, "garbage.db")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not sqlite, just some bytes that are long enough to look like a header......"), 0o644))
	_, err = Load(ctx, garbage, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSQLiteStoreSearchDuringReplace(t *testing.T) {
	ctx := context.Background()

	store, err := Create(ctx, filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	chunks, vectors := sampleChunks(4)
	require.NoError(t, store.Replace(ctx, chunks, vectors))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				hits, err := store.Search(ctx, []float64{1, 1}, 3)
				if err != nil || len(hits) == 0 {
					t.Errorf("search during replace: %v (%d hits)", err, len(hits))
					return
				}
			}
		}()
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Replace(ctx, chunks, vectors))
	}
	wg.Wait()
}

func TestVectorEncoding(t *testing.T) {
	t.Parallel()

	in := []float64{0, -1.5, 3.25e10}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
