package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/leadflow/internal/compiler"
	"github.com/aretw0/leadflow/pkg/domain"
)

var flowExtensions = []string{".json", ".yaml", ".yml"}

// Loader implements ports.FlowLoader over a directory of flow documents.
// The flow id is the file name without extension. Files are parsed on every
// GetFlow, so edits are picked up without a restart.
type Loader struct {
	dir    string
	parser *compiler.Parser
}

// NewLoader creates a loader reading from dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, parser: compiler.NewParser()}
}

// GetFlow parses the document named id.
func (l *Loader) GetFlow(ctx context.Context, id string) (*domain.FlowDefinition, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return nil, fmt.Errorf("%w: %q", domain.ErrFlowNotFound, id)
	}

	for _, ext := range flowExtensions {
		path := filepath.Join(l.dir, id+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		flow, err := l.parser.ParseFile(path)
		if err != nil {
			return nil, err
		}
		if flow.ID == "" {
			flow.ID = id
		}
		return flow, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
}

// ListFlows returns the ids of every flow document in the directory.
func (l *Loader) ListFlows(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows in %s: %w", l.dir, err)
	}

	seen := make(map[string]bool)
	ids := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !isFlowExt(ext) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ext)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func isFlowExt(ext string) bool {
	for _, e := range flowExtensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
