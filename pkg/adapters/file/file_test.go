package file_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/leadflow/internal/compiler"
	"github.com/aretw0/leadflow/internal/testutils"
	"github.com/aretw0/leadflow/pkg/adapters/file"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "conversations"))
	ports.RunConversationStoreContract(t, store)
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	err := store.Save(ctx, &domain.Conversation{ID: "../escape"})
	assert.Error(t, err)

	_, err = store.Load(ctx, "a/b")
	assert.Error(t, err)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "nope"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileLoader_Contract(t *testing.T) {
	dir := t.TempDir()
	greeting, err := compiler.Marshal(testutils.Greeting())
	require.NoError(t, err)

	testutils.WriteFile(t, dir, "saude.json", testutils.HealthBasicJSON)
	testutils.WriteFile(t, dir, "greeting.yaml", string(greeting))
	testutils.WriteFile(t, dir, "README.md", "not a flow")

	ports.RunFlowLoaderContract(t, file.NewLoader(dir), map[string]*domain.FlowDefinition{
		"saude":    testutils.HealthBasic(),
		"greeting": testutils.Greeting(),
	})
}

func TestFileLoader_SetsIDAndReportsParseErrors(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFile(t, dir, "saude.json", testutils.HealthBasicJSON)
	testutils.WriteFile(t, dir, "quebrado.json", `{"start": "a", "steps": [{"id": "a", "type": "video"}]}`)
	loader := file.NewLoader(dir)
	ctx := context.Background()

	flow, err := loader.GetFlow(ctx, "saude")
	require.NoError(t, err)
	assert.Equal(t, "saude", flow.ID)

	_, err = loader.GetFlow(ctx, "quebrado")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrFlowNotFound)

	_, err = loader.GetFlow(ctx, "../saude")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}
