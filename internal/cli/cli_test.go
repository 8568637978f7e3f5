// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/whytree/internal/completion"
	"github.com/jeranaias/whytree/internal/config"
	"github.com/jeranaias/whytree/internal/qatree"
	"github.com/jeranaias/whytree/internal/relay"
	"github.com/jeranaias/whytree/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

type testEnv struct {
	configPath string
	dataDir    string
}

func newTestEnv(t *testing.T, edit func(*config.Config)) testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"WHYTREE_API_KEY", "OPENAI_API_KEY", "WHYTREE_MODEL", "WHYTREE_PERSONA",
		"WHYTREE_RELAY_URL", "WHYTREE_STORAGE_BACKEND", "WHYTREE_RELAY_PROVIDER_KEY",
		"WHYTREE_LOG_FORMAT", "WHYTREE_LOG_LEVEL", "NO_COLOR", "FORCE_COLOR",
	} {
		t.Setenv(k, "")
	}

	env := testEnv{
		configPath: filepath.Join(home, "config.toml"),
		dataDir:    filepath.Join(home, "data"),
	}
	cfg := config.Default()
	cfg.Storage.Path = env.dataDir
	cfg.Logging.Dir = filepath.Join(home, "logs")
	cfg.Logging.Level = "error"
	if edit != nil {
		edit(cfg)
	}
	require.NoError(t, config.SaveTo(cfg, env.configPath))
	return env
}

func (e testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func (e testEnv) saveTree(t *testing.T, id string, snap qatree.Snapshot) {
	t.Helper()
	store, err := storage.Open(storage.Config{Backend: storage.BackendFile, Path: e.dataDir})
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.SaveSnapshot(context.Background(), snap, id))
}

func sampleSnapshot() qatree.Snapshot {
	return qatree.Snapshot{
		"0": {Question: "Why is the sky blue?", Answer: "Rayleigh scattering.", ChildIDs: []string{"a"}, StartedProcessing: true},
		"a": {Question: "What is scattering?", Answer: "Light bouncing off particles.", ParentID: "0", StartedProcessing: true},
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestPersonasCommand(t *testing.T) {
	env := newTestEnv(t, nil)
	out, _, err := env.run(t, "personas")
	require.NoError(t, err)
	assert.Contains(t, out, "researcher")
	assert.Contains(t, out, "toddler")
	assert.Contains(t, out, "openai/gpt-3.5-turbo")
	assert.Contains(t, out, "(current)")
}

func TestPersonasCommand_JSON(t *testing.T) {
	env := newTestEnv(t, nil)
	out, _, err := env.run(t, "personas", "--json")
	require.NoError(t, err)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Personas []PersonaInfo `json:"personas"`
			Models   []ModelInfo   `json:"models"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Data.Personas)
	assert.NotEmpty(t, resp.Data.Models)
}

func TestConfigSetGet(t *testing.T) {
	env := newTestEnv(t, nil)

	_, _, err := env.run(t, "config", "set", "generation.persona", "toddler")
	require.NoError(t, err)

	out, _, err := env.run(t, "config", "get", "generation.persona")
	require.NoError(t, err)
	assert.Equal(t, "toddler\n", out)

	cfg, err := config.Read(env.configPath)
	require.NoError(t, err)
	assert.Equal(t, "toddler", cfg.Generation.Persona)
	assert.Equal(t, env.dataDir, cfg.Storage.Path, "other settings survive")
}

func TestConfigSet_Invalid(t *testing.T) {
	env := newTestEnv(t, nil)

	_, _, err := env.run(t, "config", "set", "generation.persona", "pirate")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))

	_, _, err = env.run(t, "config", "set", "no.such_key", "1")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestConfigShow_RedactsKey(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Transport.APIKey = "sk-abcdefghijklmnop"
	})
	out, _, err := env.run(t, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-abcdefghijklmnop")
	assert.Contains(t, out, "[generation]")

	out, _, err = env.run(t, "config", "get", "transport.api_key")
	require.NoError(t, err)
	assert.NotContains(t, out, "abcdefghijkl")
}

func TestHistory_Empty(t *testing.T) {
	env := newTestEnv(t, nil)
	out, _, err := env.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved trees")
}

func TestHistory_ListAndRemove(t *testing.T) {
	env := newTestEnv(t, nil)
	env.saveTree(t, "tree-1", sampleSnapshot())

	out, _, err := env.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "tree-1")
	assert.Contains(t, out, "Why is the sky blue?")

	out, _, err = env.run(t, "history", "--json")
	require.NoError(t, err)
	var resp struct {
		Data []TreeSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 2, resp.Data[0].Nodes)

	_, _, err = env.run(t, "history", "rm", "tree-1")
	require.NoError(t, err)

	_, _, err = env.run(t, "export", "tree-1", "--stdout")
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.Equal(t, ExitNotFound, ExitCode(err))
}

func TestExport_Stdout(t *testing.T) {
	env := newTestEnv(t, nil)
	env.saveTree(t, "tree-1", sampleSnapshot())

	out, _, err := env.run(t, "export", "tree-1", "--format", "md", "--stdout", "--metadata=false")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Why is the sky blue?"), out)
	assert.Contains(t, out, "- **What is scattering?**")
}

func TestExport_File(t *testing.T) {
	env := newTestEnv(t, nil)
	env.saveTree(t, "tree-1", sampleSnapshot())
	dir := t.TempDir()

	out, _, err := env.run(t, "export", "tree-1", "--format", "html", "--output", dir)
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "why-is-the-sky-blue-"))
	assert.Equal(t, ".html", filepath.Ext(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Rayleigh scattering.")
}

func TestExport_UnknownFormat(t *testing.T) {
	env := newTestEnv(t, nil)
	_, _, err := env.run(t, "export", "tree-1", "--format", "pdf")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestReplay_Plain(t *testing.T) {
	env := newTestEnv(t, nil)
	env.saveTree(t, "tree-1", sampleSnapshot())

	out, _, err := env.run(t, "replay", "tree-1", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "# Why is the sky blue?")
	assert.Contains(t, out, "Light bouncing off particles.")
}

func TestExplore_NeedsAPIKey(t *testing.T) {
	env := newTestEnv(t, nil)
	_, _, err := env.run(t, "explore", "--plain", "Why?")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))
}

func TestExplore_BadFlags(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Transport.APIKey = "sk-test" })

	_, _, err := env.run(t, "explore", "--plain", "--persona", "pirate", "Why?")
	assert.Equal(t, ExitUsageError, ExitCode(err))

	_, _, err = env.run(t, "explore", "--plain", "--temperature", "3", "Why?")
	assert.Equal(t, ExitUsageError, ExitCode(err))

	_, _, err = env.run(t, "explore", "--plain", "--budget", "0", "Why?")
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

// providerStub answers question prompts with one follow-up and everything
// else with a fixed answer.
func providerStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reply := "Because of Rayleigh scattering."
		if strings.Contains(string(body), "JSON array") {
			reply = `[{"question": "Why does light scatter?", "score": 7}]`
		}
		chunk, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"delta": map[string]string{"content": reply}}},
		})
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestExplore_PlainRunsBudgetAndSaves(t *testing.T) {
	server := providerStub(t)
	defer server.Close()

	env := newTestEnv(t, func(c *config.Config) {
		c.Transport.APIKey = "sk-test"
		c.Transport.BaseURL = server.URL
		c.Generation.Concurrency = 1
		c.Generation.PollIntervalMs = 5
	})

	out, errOut, err := env.run(t, "explore", "--plain", "--budget", "1", "Why is the sky blue?")
	require.NoError(t, err)
	assert.Contains(t, out, "Q: Why is the sky blue?")
	assert.Contains(t, out, "Because of Rayleigh scattering.")
	assert.Regexp(t, `saved as \S+ \(\d+ nodes in \d+(m|s)`, errOut)

	store, err := storage.Open(storage.Config{Backend: storage.BackendFile, Path: env.dataDir})
	require.NoError(t, err)
	defer store.Close()
	trees, err := store.LoadHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Equal(t, "Why is the sky blue?", trees[0].SeedQuery)

	root, ok := trees[0].Tree.Root()
	require.True(t, ok)
	assert.Equal(t, "Because of Rayleigh scattering.", root.Answer)
	require.Len(t, root.ChildIDs, 1)
	child, ok := trees[0].Tree.Get(root.ChildIDs[0])
	require.True(t, ok)
	assert.Equal(t, "Why does light scatter?", child.Question)
	assert.Empty(t, child.Answer, "budget stops before the child")
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--config", "/does/not/exist.toml"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "whytree "+Version)
}

// =============================================================================
// HELPERS UNDER TEST
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", usageError("bad"), ExitUsageError},
		{"config", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "x", Message: "y"}}), ExitConfigError},
		{"not found", commandError("export", "x", storage.ErrNotFound), ExitNotFound},
		{"quota", &completion.ProviderError{Status: http.StatusTooManyRequests}, ExitQuotaError},
		{"auth", &completion.ProviderError{Status: http.StatusUnauthorized}, ExitAuthError},
		{"network", &completion.ProviderError{Status: http.StatusBadGateway}, ExitNetworkError},
		{"cancelled", fmt.Errorf("run: %w", context.Canceled), ExitInterrupted},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestFingerprint_Stable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	a, err := fingerprint()
	require.NoError(t, err)
	b, err := fingerprint()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 36)
}

func TestPlainPrinter_IndentsByDepth(t *testing.T) {
	tree := qatree.FromSnapshot(sampleSnapshot())
	var buf bytes.Buffer
	p := newPlainPrinter(&buf, tree)
	p.Print("a")
	p.Print("missing")
	assert.Equal(t, "  Q: What is scattering?\n     Light bouncing off particles.\n\n", buf.String())
}

func TestColorsEnabled(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("FORCE_COLOR", "")
	assert.False(t, ColorsEnabled(&bytes.Buffer{}))

	t.Setenv("FORCE_COLOR", "1")
	assert.True(t, ColorsEnabled(&bytes.Buffer{}))

	t.Setenv("NO_COLOR", "1")
	assert.False(t, ColorsEnabled(&bytes.Buffer{}))
}

func TestRelay_NeedsProviderKey(t *testing.T) {
	env := newTestEnv(t, nil)
	_, _, err := env.run(t, "relay")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))
}

func TestRelay_QuotaHotReload(t *testing.T) {
	env := newTestEnv(t, nil)
	a := &app{configPath: env.configPath}
	require.NoError(t, a.loadConfig())
	require.NoError(t, a.setupLogging(io.Discard, false))

	stub := relay.ProviderFunc(func(ctx context.Context, req relay.ProviderRequest, onDelta func(string) error) error {
		return nil
	})
	srv := relay.New(relay.Config{DailyQuota: 3, Logger: a.logger}, stub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := a.watchRelayConfig(ctx, srv)
	require.NotNil(t, w)
	defer w.Close()

	cfg, err := config.Read(env.configPath)
	require.NoError(t, err)
	cfg.Relay.DailyQuota = 7
	require.NoError(t, config.SaveTo(cfg, env.configPath))

	assert.Eventually(t, func() bool {
		return srv.Limiter().Quota() == 7
	}, 5*time.Second, 20*time.Millisecond)
}
