// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/whytree/internal/completion"
	"github.com/jeranaias/whytree/internal/qatree"
	"github.com/jeranaias/whytree/internal/storage"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func chunksProvider(calls chan<- ProviderRequest, chunks ...string) Provider {
	return ProviderFunc(func(ctx context.Context, req ProviderRequest, onDelta func(string) error) error {
		if calls != nil {
			calls <- req
		}
		for _, c := range chunks {
			if err := onDelta(c); err != nil {
				return err
			}
		}
		return nil
	})
}

func newTestRelay(t *testing.T, provider Provider, opts ...Option) (*Server, *Client) {
	t.Helper()
	s := New(Config{AllowedModels: []string{"gpt-3.5-turbo", "gpt-4"}}, provider, opts...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, NewClient(ts.URL)
}

func redeem(t *testing.T, c *Client, model string) string {
	t.Helper()
	ticket, err := c.UsePrompt(context.Background(), "fp-test", model)
	require.NoError(t, err)
	require.NotEmpty(t, ticket.SessionToken)
	return ticket.SessionToken
}

func streamVia(c *Client, token string, temp completion.Temperature, model string) ([]string, error) {
	var got []string
	err := completion.NewRelayed(c.WebSocketURL()).Stream(context.Background(), "Why is the sky blue?",
		completion.Options{Temperature: temp, Model: model, SessionToken: token},
		func(chunk string) { got = append(got, chunk) })
	return got, err
}

// rawRequest sends req on a fresh socket and returns the first reply.
func rawRequest(t *testing.T, c *Client, req completion.RelayRequest) completion.RelayError {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(c.WebSocketURL(), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(req))
	var reply completion.RelayError
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

// ============================================================================
// STREAMING TESTS
// ============================================================================

func TestRelay_StreamsChunksThenDone(t *testing.T) {
	calls := make(chan ProviderRequest, 1)
	_, client := newTestRelay(t, chunksProvider(calls, "Rayleigh ", "scattering", "."))
	token := redeem(t, client, "")

	got, err := streamVia(client, token, 1, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Rayleigh ", "scattering", "."}, got)

	req := <-calls
	assert.Equal(t, "Why is the sky blue?", req.Prompt)
	assert.Equal(t, "gpt-3.5-turbo", req.Model)
	assert.Equal(t, 1.0, req.Temperature)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
}

func TestRelay_OneTokenServesManyCompletions(t *testing.T) {
	_, client := newTestRelay(t, chunksProvider(nil, "ok"))
	token := redeem(t, client, "openai/gpt4")

	for i := 0; i < 5; i++ {
		got, err := streamVia(client, token, 1, "openai/gpt4")
		require.NoError(t, err)
		assert.Equal(t, []string{"ok"}, got)
	}
}

func TestRelay_RejectsMissingToken(t *testing.T) {
	_, client := newTestRelay(t, chunksProvider(nil, "never"))

	_, err := streamVia(client, "", 1, "")
	require.Error(t, err)

	var pe *completion.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, codeInvalidToken, pe.Code)
	assert.ErrorIs(t, err, completion.ErrProvider)
}

func TestRelay_RejectsModelOutsideSession(t *testing.T) {
	_, client := newTestRelay(t, chunksProvider(nil, "never"))
	token := redeem(t, client, "gpt-3.5-turbo")

	_, err := streamVia(client, token, 1, "gpt-4")
	var pe *completion.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, codeUnknownModel, pe.Code)
}

func TestRelay_ValidatesTemperature(t *testing.T) {
	_, client := newTestRelay(t, chunksProvider(nil, "never"))
	token := redeem(t, client, "")

	reply := rawRequest(t, client, completion.RelayRequest{Prompt: "Why?", Temperature: 1.5, SessionToken: token})
	assert.Equal(t, codeInvalidTemp, reply.Code)

	reply = rawRequest(t, client, completion.RelayRequest{Prompt: "", Temperature: 1, SessionToken: token})
	assert.Equal(t, codeBadRequest, reply.Code)
}

func TestRelay_ProviderFailureAfterChunks(t *testing.T) {
	provider := ProviderFunc(func(ctx context.Context, req ProviderRequest, onDelta func(string) error) error {
		if err := onDelta("partial"); err != nil {
			return err
		}
		return errors.New("upstream 502")
	})
	_, client := newTestRelay(t, provider)
	token := redeem(t, client, "")

	got, err := streamVia(client, token, 1, "")
	assert.Equal(t, []string{"partial"}, got)
	require.Error(t, err)
	assert.Equal(t, "partial", completion.PartialContent(err))

	var pe *completion.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, codeProvider, pe.Code)
}

func TestRelay_NoProviderConfigured(t *testing.T) {
	_, client := newTestRelay(t, nil)
	token := redeem(t, client, "")

	_, err := streamVia(client, token, 1, "")
	var pe *completion.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, codeNotConfigured, pe.Code)
}

func TestRelay_ClientHangupCancelsProvider(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	provider := ProviderFunc(func(ctx context.Context, req ProviderRequest, onDelta func(string) error) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	_, client := newTestRelay(t, provider)
	token := redeem(t, client, "")

	conn, _, err := websocket.DefaultDialer.Dial(client.WebSocketURL(), nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(completion.RelayRequest{Prompt: "Why?", Temperature: 1, SessionToken: token}))

	<-started
	conn.Close()

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("provider was not cancelled after client hangup")
	}
}

// ============================================================================
// QUOTA TESTS
// ============================================================================

func TestRelay_DailyQuota(t *testing.T) {
	_, client := newTestRelay(t, chunksProvider(nil, "ok"))
	ctx := context.Background()

	q, err := client.Remaining(ctx, "fp-quota", "")
	require.NoError(t, err)
	assert.Equal(t, 3, q.Remaining)
	assert.Equal(t, 3, q.Quota)

	for want := 2; want >= 0; want-- {
		ticket, err := client.UsePrompt(ctx, "fp-quota", "")
		require.NoError(t, err)
		assert.Equal(t, want, ticket.Remaining)
	}

	_, err = client.UsePrompt(ctx, "fp-quota", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, completion.ErrRateLimited)

	var pe *completion.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, completion.RelayCodeQuota, pe.Code)
	assert.Equal(t, http.StatusTooManyRequests, pe.Status)

	q, err = client.Remaining(ctx, "fp-quota", "")
	require.NoError(t, err)
	assert.Equal(t, 0, q.Remaining)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TestRelay_TokenOutlivesQuotaWindow keeps a token issued just before UTC
// midnight valid for the full TTL.
func TestRelay_TokenOutlivesQuotaWindow(t *testing.T) {
	start := time.Date(2025, 3, 1, 23, 55, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	s := New(Config{Now: clock.Now}, chunksProvider(nil, "ok"))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	client := NewClient(ts.URL)

	ticket, err := client.UsePrompt(context.Background(), "fp-late", "")
	require.NoError(t, err)
	assert.True(t, ticket.ExpiresAt.Equal(start.Add(DefaultTokenTTL)), "expires at %v", ticket.ExpiresAt)

	clock.Advance(10 * time.Minute)
	got, err := streamVia(client, ticket.SessionToken, 1, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, got)

	clock.Advance(DefaultTokenTTL)
	_, err = streamVia(client, ticket.SessionToken, 1, "")
	var pe *completion.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, codeInvalidToken, pe.Code)
}

func TestTokenStore_TTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := newTokenStore(time.Hour, clock.Now)

	token, expires := store.issue("fp", "gpt-4")
	assert.Equal(t, clock.Now().Add(time.Hour), expires)

	clock.Advance(59 * time.Minute)
	got, ok := store.lookup(token)
	require.True(t, ok)
	assert.Equal(t, "gpt-4", got.Model)

	clock.Advance(time.Minute)
	_, ok = store.lookup(token)
	assert.False(t, ok)
	assert.Zero(t, store.len())
}

func TestRelay_PromptsRemainingAlias(t *testing.T) {
	s := New(Config{}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prompts-remaining?fp=abc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var q QuotaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, 3, q.Remaining)
}

func TestRelay_UnknownModelRejected(t *testing.T) {
	_, client := newTestRelay(t, nil)
	_, err := client.UsePrompt(context.Background(), "fp", "llama-70b")

	var pe *completion.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadRequest, pe.Status)
	assert.Equal(t, codeUnknownModel, pe.Code)
}

func TestRelay_UsePromptRequiresPost(t *testing.T) {
	s := New(Config{}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/use-prompt?fp=abc", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// ============================================================================
// EXAMPLES, HEALTH AND METRICS
// ============================================================================

func TestRelay_Examples(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	tree := qatree.Snapshot{qatree.RootID: {Question: "Why do cats purr?", Answer: "Contentment."}}
	require.NoError(t, store.SaveSnapshot(context.Background(), tree, "cats"))

	_, client := newTestRelay(t, nil, WithExamples(store))
	ctx := context.Background()

	list, err := client.Examples(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "cats", list[0].ID)
	assert.Equal(t, "Why do cats purr?", list[0].SeedQuery)
	assert.Equal(t, 1, list[0].Nodes)

	saved, err := client.Example(ctx, "cats")
	require.NoError(t, err)
	assert.Equal(t, "Contentment.", saved.Tree[qatree.RootID].Answer)

	_, err = client.Example(ctx, "dogs")
	var pe *completion.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusNotFound, pe.Status)
}

func TestRelay_ExamplesEmptyWithoutStore(t *testing.T) {
	_, client := newTestRelay(t, nil)
	list, err := client.Examples(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRelay_Health(t *testing.T) {
	for _, tc := range []struct {
		name     string
		provider Provider
		status   string
	}{
		{"configured", chunksProvider(nil), "ok"},
		{"missing provider", nil, "degraded"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := New(Config{}, tc.provider)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var h HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
			assert.Equal(t, tc.status, h.Status)
			assert.Equal(t, DefaultModel, h.DefaultModel)
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestRelay_Metrics(t *testing.T) {
	s, client := newTestRelay(t, chunksProvider(nil, "a", "b"))
	token := redeem(t, client, "")
	_, err := streamVia(client, token, 1, "")
	require.NoError(t, err)

	// The stream counter is recorded when the handler returns
	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		body, _ := io.ReadAll(rec.Body)
		text := string(body)
		return strings.Contains(text, `whytree_relay_streams_total{result="ok"} 1`) &&
			strings.Contains(text, "whytree_relay_chunks_total 2") &&
			strings.Contains(text, `whytree_relay_prompts_total{result="ok"} 1`)
	}, 2*time.Second, 20*time.Millisecond)
}
