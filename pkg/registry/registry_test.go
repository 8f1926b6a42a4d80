package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibe-workers/internal/common/fallback"
	"vibe-workers/internal/common/prompt"
)

func TestCatalog_CoversEveryTemplate(t *testing.T) {
	reg := Catalog()

	ids := make([]string, 0, len(reg.UseCases))
	for _, uc := range reg.UseCases {
		ids = append(ids, uc.ID)
		assert.Equal(t, uc.ID, uc.Template, "use case %s has no template", uc.ID)
		assert.Equal(t, fallback.Has(uc.ID), uc.HasFallback)
		assert.NotEmpty(t, uc.Route)
	}
	assert.Equal(t, prompt.Names(), ids)
}

func TestCatalog_FeedbackHasNoFallback(t *testing.T) {
	uc, ok := Catalog().Find(prompt.ConversationFeedback)
	require.True(t, ok)
	assert.False(t, uc.HasFallback)
	assert.True(t, uc.Cached)

	_, ok = Catalog().Find("unknown")
	assert.False(t, ok)
}

func TestSaveAndLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "usecases.json")
	reg := Catalog()

	require.NoError(t, SaveRegistry(path, reg))
	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, reg, loaded)
}
