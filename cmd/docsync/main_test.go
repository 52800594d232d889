package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/pdf-assistant/internal/errs"
)

func execute(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	cmd := newRootCmd(func(k string) string { return env[k] })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestIndex_RequiresConfiguration(t *testing.T) {
	_, err := execute(t, map[string]string{}, "index")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestIndex_EmptyFolderWithLocalBackend(t *testing.T) {
	env := map[string]string{
		"VECTOR_BACKEND":     "chromem",
		"EMBEDDING_PROVIDER": "openai",
		"OPENAI_API_KEY":     "sk-test",
		"GEMINI_API_KEY":     "gm",
	}
	t.Chdir(t.TempDir())
	require.NoError(t, os.Mkdir("Documents", 0o755))

	cmd := newRootCmd(func(k string) string { return env[k] })
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs([]string{"index"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Index complete!")
	assert.Contains(t, out.String(), "Documents: 0/0")
	assert.Contains(t, out.String(), "Upserted: 0")
}

func TestFetch_RequiresRepo(t *testing.T) {
	_, err := execute(t, map[string]string{}, "fetch")
	assert.Error(t, err)

	_, err = execute(t, map[string]string{}, "fetch", "--repo", "no-slash")
	assert.ErrorContains(t, err, "owner/name")
}

func TestFetch_FlagsRegistered(t *testing.T) {
	cmd := newFetchCmd(func(string) string { return "" })
	for _, name := range []string{"repo", "path", "dest"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}
