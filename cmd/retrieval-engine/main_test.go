package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tourism-retrieval/internal/common/config"
	"tourism-retrieval/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testRegistry = `version: "1.0"
last_updated: "2026-09-01"
regions:
  - code: MS
    name: Mato Grosso do Sul
    default_source: Fundtur MS
sources:
  - name: Fundtur MS
    base_url: https://www.turismo.ms.gov.br
    tier: high
    region: MS
    categories: [attraction, hotel]
    official: true
    kind: knowledge_base
    entries:
      - keywords: [gruta, lago]
        title: Gruta do Lago Azul
        url: https://www.turismo.ms.gov.br/gruta-do-lago-azul
        snippet: Monumento natural em Bonito, visitas guiadas diárias.
        category: attraction
        last_updated: "2026-08-15"
`

// ==========================
// Test Helper Functions
// ==========================

func writeTestConfig(t *testing.T) string {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(regPath, []byte(testRegistry), 0o600))

	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "app:\n  name: retrieval-test\nlogging:\n  level: error\nsearch:\n  registry_path: " + regPath + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		configPath = ""
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

// ==========================
// Bootstrap
// ==========================

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := retryWithBackoff(func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, 5, time.Millisecond, zap.NewNop(), "op")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	err = retryWithBackoff(func() error { return errors.New("down") }, 2, time.Millisecond, zap.NewNop(), "postgres")
	assert.EqualError(t, err, "postgres failed after 2 attempts: down")
}

func TestNewApp_InMemory(t *testing.T) {
	cfg, err := config.LoadFromFile(writeTestConfig(t))
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg, zap.NewNop(), 1)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.pg)
	assert.Nil(t, a.redis)
	assert.Empty(t, a.readinessChecks())

	results, err := a.engine.Search(context.Background(), models.SearchQuery{Text: "passeio na gruta"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Gruta do Lago Azul", results[0].Title)
	assert.Equal(t, "Fundtur MS", results[0].Source)
}

// ==========================
// Commands
// ==========================

func TestSearchCommand(t *testing.T) {
	out, err := execute(t, "search", "--config", writeTestConfig(t), "lago", "azul")
	require.NoError(t, err)

	var body struct {
		Results  []models.SearchResult   `json:"results"`
		Guidance models.LearningGuidance `json:"guidance"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "https://www.turismo.ms.gov.br/gruta-do-lago-azul", body.Results[0].URL)
}

func TestSourcesCommands(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := execute(t, "sources", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Fundtur MS")
	assert.Contains(t, out, "knowledge_base")

	out, err = execute(t, "sources", "validate", "--path", filepath.Join(filepath.Dir(cfgPath), "sources.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "1 regions, 1 sources, 1 knowledge entries")
}

func TestSourcesValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - name: x\n    base_url: https://x\n    tier: gold\n    region: MS\n"), 0o600))

	_, err := execute(t, "sources", "validate", "--path", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tier")
}

func TestGapsDigest_NothingToSend(t *testing.T) {
	out, err := execute(t, "gaps", "digest", "--dry-run", "--config", writeTestConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "no high priority knowledge gaps")
}
