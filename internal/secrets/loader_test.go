package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("  from-file\n"), 0o600))
	t.Setenv("TEST_SECRET", "from-env")

	got, err := Load(Source{Name: "api key", Value: "inline", File: path, Env: "TEST_SECRET"})
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)
}

func TestLoadFallsBackToValueThenEnv(t *testing.T) {
	t.Setenv("TEST_SECRET", " from-env ")

	got, err := Load(Source{Name: "api key", Value: "inline", Env: "TEST_SECRET"})
	require.NoError(t, err)
	assert.Equal(t, "inline", got)

	got, err = Load(Source{Name: "api key", Env: "TEST_SECRET"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestLoadErrors(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o600))

	_, err := Load(Source{Name: "api key", File: empty})
	require.ErrorContains(t, err, "is empty")

	_, err = Load(Source{Name: "api key", File: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)

	t.Setenv("TEST_SECRET", "")
	_, err = Load(Source{Name: "api key", Env: "TEST_SECRET"})
	require.ErrorContains(t, err, "TEST_SECRET")

	_, err = Load(Source{})
	require.EqualError(t, err, "secret is not configured")
}
