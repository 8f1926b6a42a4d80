package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibe-workers/internal/common/prompt"
	"vibe-workers/pkg/registry"
)

func TestValidateCatalog_LiveCatalogIsConsistent(t *testing.T) {
	assert.Empty(t, validateCatalog(registry.Catalog()))
}

func TestValidateCatalog_ReportsProblems(t *testing.T) {
	reg := registry.Catalog()
	reg.UseCases = append(reg.UseCases, registry.UseCase{ID: "horoscope"})
	reg.UseCases[0].Template = ""

	problems := validateCatalog(reg)
	assert.Contains(t, problems, reg.UseCases[0].ID+": no prompt template registered")
	assert.Contains(t, problems, "horoscope: no prompt template registered")
	assert.Contains(t, problems, "horoscope: no output validator")
}

func TestRender(t *testing.T) {
	t.Run("inline args", func(t *testing.T) {
		text, err := render(prompt.SummarizeText, `{"text": "We met at the climbing gym."}`)
		require.NoError(t, err)
		assert.Contains(t, text, "We met at the climbing gym.")
	})

	t.Run("args file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "args.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"text": "from a file"}`), 0o644))

		text, err := render(prompt.SummarizeText, path)
		require.NoError(t, err)
		assert.Contains(t, text, "from a file")
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := render("horoscope", "{}")
		assert.ErrorIs(t, err, prompt.ErrTemplateNotFound)
	})

	t.Run("bad args", func(t *testing.T) {
		_, err := render(prompt.SummarizeText, "{not json")
		assert.Error(t, err)
	})
}

func TestList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, list(&buf, false))
	assert.Contains(t, buf.String(), "/api/ai/verify-photo")
	assert.Contains(t, buf.String(), "conversation-feedback")
}

func TestCompareWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usecases.json")
	live := registry.Catalog()
	require.NoError(t, registry.SaveRegistry(path, live))
	assert.Empty(t, compareWithFile(path, live))

	stale := registry.Catalog()
	stale.UseCases[0].Route = "/old"
	stale.UseCases = stale.UseCases[:len(stale.UseCases)-1]
	require.NoError(t, registry.SaveRegistry(path, stale))

	problems := compareWithFile(path, live)
	assert.Len(t, problems, 2)
}
