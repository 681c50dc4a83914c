package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/epirag/epirag/internal/domain"
	"github.com/epirag/epirag/internal/usecase/ingest"
)

// --- Mocks ---

type mockRetriever struct {
	candidates []domain.Candidate
	lastQuery  domain.Query
}

func (m *mockRetriever) Retrieve(_ context.Context, q domain.Query) []domain.Candidate {
	m.lastQuery = q
	return m.candidates
}

type mockReindexer struct {
	res ingest.Result
	err error
}

func (m *mockReindexer) Reindex(_ context.Context) (ingest.Result, error) {
	return m.res, m.err
}

type mockChunks struct {
	texts map[string]string
	err   error
}

func (m *mockChunks) ChunkTexts(_ context.Context, _ []string) (map[string]string, error) {
	return m.texts, m.err
}

type mockEvents struct {
	events []domain.Event
}

func (m *mockEvents) RecentEvents(_ context.Context, limit int) ([]domain.Event, error) {
	if limit < len(m.events) {
		return m.events[:limit], nil
	}
	return m.events, nil
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

func testServer(t *testing.T, s *Server) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	s.Routes(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func defaultServer(retriever *mockRetriever) *Server {
	return NewServer(
		retriever,
		&mockReindexer{},
		&mockChunks{texts: map[string]string{"c1": "malaria treatment ghana"}},
		&mockEvents{},
		[]Pinger{&mockPinger{}},
		Limits{DefaultTopK: 10, MaxTopK: 50},
		zap.NewNop(),
	)
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

// --- Tests ---

func TestHandleQuery_TooShort(t *testing.T) {
	ts := testServer(t, defaultServer(&mockRetriever{}))

	resp := postJSON(t, ts.URL+"/query", `{"user_query": "ab"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHandleQuery_Success(t *testing.T) {
	retriever := &mockRetriever{candidates: []domain.Candidate{{
		ChunkID:       "c1",
		SemanticScore: 1.0,
		BM25Score:     0.5,
		SectionBoost:  0.3,
		FinalScore:    1.15,
		Payload: domain.Payload{
			DocumentID: "d1", Section: domain.SectionResults, Country: "Ghana", CharCount: 23,
		},
	}}}
	ts := testServer(t, defaultServer(retriever))

	resp := postJSON(t, ts.URL+"/query", `{"user_query": "malaria treatment", "country": "Ghana", "top_k": 5}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if body.ChunksRetrieved != 1 || len(body.RetrievedChunks) != 1 {
		t.Fatalf("unexpected response: %+v", body)
	}
	chunk := body.RetrievedChunks[0]
	if chunk.Text != "malaria treatment ghana" {
		t.Errorf("chunk text not hydrated: %q", chunk.Text)
	}
	if chunk.SectionBoost != 0.3 || chunk.Country != "Ghana" {
		t.Errorf("chunk metadata not carried: %+v", chunk)
	}
	if body.FiltersApplied["country"] != "Ghana" {
		t.Errorf("filters_applied missing country: %v", body.FiltersApplied)
	}
	if body.TopChunkIDs[0] != "c1" {
		t.Errorf("unexpected top ids: %v", body.TopChunkIDs)
	}

	if retriever.lastQuery.TopK != 5 || retriever.lastQuery.Country != "Ghana" {
		t.Errorf("query not passed through: %+v", retriever.lastQuery)
	}
}

func TestHandleQuery_TopKBounds(t *testing.T) {
	retriever := &mockRetriever{}
	ts := testServer(t, defaultServer(retriever))

	resp := postJSON(t, ts.URL+"/query", `{"user_query": "malaria treatment"}`)
	resp.Body.Close()
	if retriever.lastQuery.TopK != 10 {
		t.Errorf("expected default top_k 10, got %d", retriever.lastQuery.TopK)
	}

	resp = postJSON(t, ts.URL+"/query", `{"user_query": "malaria treatment", "top_k": 500}`)
	resp.Body.Close()
	if retriever.lastQuery.TopK != 50 {
		t.Errorf("expected top_k capped at 50, got %d", retriever.lastQuery.TopK)
	}
}

func TestHandleQuery_HydrationFailureDegrades(t *testing.T) {
	retriever := &mockRetriever{candidates: []domain.Candidate{{ChunkID: "c1", FinalScore: 0.9}}}
	s := defaultServer(retriever)
	s.chunks = &mockChunks{err: errors.New("db down")}
	ts := testServer(t, s)

	resp := postJSON(t, ts.URL+"/query", `{"user_query": "malaria treatment"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("hydration failure should not fail the query, got %d", resp.StatusCode)
	}

	var body queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.RetrievedChunks[0].Text != "" {
		t.Errorf("expected empty text on hydration failure, got %q", body.RetrievedChunks[0].Text)
	}
}

func TestHandleReindex(t *testing.T) {
	t.Run("requires confirm", func(t *testing.T) {
		ts := testServer(t, defaultServer(&mockRetriever{}))
		resp := postJSON(t, ts.URL+"/reindex", `{"confirm": false}`)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("success", func(t *testing.T) {
		s := defaultServer(&mockRetriever{})
		s.reindexer = &mockReindexer{res: ingest.Result{ChunksTotal: 10, Embedded: 7, Skipped: 3, LexicalDocs: 10}}
		ts := testServer(t, s)

		resp := postJSON(t, ts.URL+"/reindex", `{"confirm": true}`)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var body reindexResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if !body.Success || body.Embedded != 7 || body.LexicalDocs != 10 {
			t.Errorf("unexpected response: %+v", body)
		}
	})

	t.Run("provider failure maps to 502", func(t *testing.T) {
		s := defaultServer(&mockRetriever{})
		s.reindexer = &mockReindexer{err: fmt.Errorf("embed: %w", domain.ErrEmbeddingProviderError)}
		ts := testServer(t, s)

		resp := postJSON(t, ts.URL+"/reindex", `{"confirm": true}`)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", resp.StatusCode)
		}
	})
}

func TestHandleLogs(t *testing.T) {
	s := defaultServer(&mockRetriever{})
	s.events = &mockEvents{events: []domain.Event{
		{LogID: 2, Level: domain.EventWarning, Message: "zero results", CreatedAt: time.Now()},
		{LogID: 1, DocumentID: "d1", Level: domain.EventInfo, Message: "ok", CreatedAt: time.Now()},
	}}
	ts := testServer(t, s)

	resp, err := http.Get(ts.URL + "/logs?limit=1")
	if err != nil {
		t.Fatalf("GET /logs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body logsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.TotalLogs != 1 || body.Logs[0].Level != "WARNING" {
		t.Errorf("unexpected response: %+v", body)
	}

	badResp, err := http.Get(ts.URL + "/logs?limit=abc")
	if err != nil {
		t.Fatalf("GET /logs: %v", err)
	}
	badResp.Body.Close()
	if badResp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid limit, got %d", badResp.StatusCode)
	}
}

func TestHandleHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		ts := testServer(t, defaultServer(&mockRetriever{}))
		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatalf("GET /healthz: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("unhealthy", func(t *testing.T) {
		s := defaultServer(&mockRetriever{})
		s.health = []Pinger{&mockPinger{err: errors.New("connection refused")}}
		ts := testServer(t, s)

		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatalf("GET /healthz: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", resp.StatusCode)
		}
	})
}
