package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/repositories"
	"github.com/desertthunder/compuse/internal/shared"
	"github.com/desertthunder/compuse/internal/tasks"
)

type fixture struct {
	drafts *repositories.DraftRepository
	clips  *repositories.ClipRepository
	draft  *models.Draft
	router *BasicRouter
	logs   *bytes.Buffer
}

func newFixture(t *testing.T, limiter *ClientLimiter) *fixture {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	f := &fixture{
		drafts: repositories.NewDraftRepository(db),
		clips:  repositories.NewClipRepository(db),
		logs:   &bytes.Buffer{},
	}

	f.draft = models.NewDraft(0, "Ensaio", "G", "G D/F# Em C")
	if err := f.drafts.Create(f.draft); err != nil {
		t.Fatalf("failed to create draft: %v", err)
	}
	other := models.NewDraft(0, "Valsa", "A", "A E F#m D")
	if err := f.drafts.Create(other); err != nil {
		t.Fatalf("failed to create draft: %v", err)
	}

	clip := models.NewPersistedClip(0, f.draft.ID(), models.AudioClip{
		ID:        "clip-1",
		Name:      "Intro",
		SourceURI: "file:///clips/intro.wav",
		MimeType:  "audio/wav",
		Size:      44,
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if err := f.clips.Create(clip); err != nil {
		t.Fatalf("failed to create clip: %v", err)
	}

	logger := log.New(f.logs)
	editor := tasks.NewDraftEngine(f.drafts, f.clips, nil, logger)
	f.router = NewRouter(NewAPI(f.drafts, f.clips, editor, logger), logger, limiter)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestBasicRouter(t *testing.T) {
	t.Run("middleware order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(tag("first"), tag("second"))
		router.Handle("get", "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ping", nil))

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", w.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("recover", func(t *testing.T) {
		logs := &bytes.Buffer{}
		handler := Recover(log.New(logs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", w.Code)
		}
		if !strings.Contains(logs.String(), "boom") {
			t.Error("expected panic to be logged")
		}
	})

	t.Run("logging", func(t *testing.T) {
		logs := &bytes.Buffer{}
		handler := Logging(log.New(logs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tea", nil))

		if !strings.Contains(logs.String(), "/tea") || !strings.Contains(logs.String(), "418") {
			t.Errorf("unexpected log line %q", logs.String())
		}
	})

	t.Run("rate limit per client", func(t *testing.T) {
		handler := RateLimit(NewClientLimiter(1, 1))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		send := func(addr string) int {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = addr
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			return w.Code
		}

		if code := send("10.0.0.1:1000"); code != http.StatusOK {
			t.Errorf("first request: expected 200, got %d", code)
		}
		if code := send("10.0.0.1:1001"); code != http.StatusTooManyRequests {
			t.Errorf("second request: expected 429, got %d", code)
		}
		if code := send("10.0.0.2:1000"); code != http.StatusOK {
			t.Errorf("other client: expected 200, got %d", code)
		}
	})

	t.Run("nil limiter", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
		handler := RateLimit(nil)(next)
		for range 10 {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
		}
	})
}

func TestAPI(t *testing.T) {
	t.Run("keys", func(t *testing.T) {
		f := newFixture(t, nil)
		w := f.do(t, http.MethodGet, "/api/keys", "")

		body := decode[map[string][]string](t, w)
		if got := strings.Join(body["keys"], " "); got != "C C# D D# E F F# G G# A A# B" {
			t.Errorf("unexpected keys %q", got)
		}
	})

	t.Run("transpose text", func(t *testing.T) {
		f := newFixture(t, nil)
		w := f.do(t, http.MethodPost, "/api/transpose", `{"from":"G","to":"D","text":"G D/F# Em C"}`)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		resp := decode[TransposeResponse](t, w)
		if resp.Text != "D A/C# Bm G" {
			t.Errorf("unexpected text %q", resp.Text)
		}
		if resp.Interval != 7 {
			t.Errorf("expected interval 7, got %d", resp.Interval)
		}
		if strings.Join(resp.Chords, " ") != "D A C# Bm G" {
			t.Errorf("unexpected chords %v", resp.Chords)
		}
	})

	t.Run("transpose by semitones", func(t *testing.T) {
		f := newFixture(t, nil)
		w := f.do(t, http.MethodPost, "/api/transpose", `{"semitones":-2,"text":"C G"}`)

		resp := decode[TransposeResponse](t, w)
		if resp.Text != "A# F" || resp.Interval != 10 {
			t.Errorf("unexpected response %+v", resp)
		}
	})

	t.Run("transpose rejects unknown keys", func(t *testing.T) {
		f := newFixture(t, nil)
		for _, body := range []string{
			`{"from":"H","to":"D","text":"G"}`,
			`{"from":"G","to":"Bbm","text":"G"}`,
			`{"from":"G"`,
			`{"key":"G"}`,
		} {
			if w := f.do(t, http.MethodPost, "/api/transpose", body); w.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", body, w.Code)
			}
		}
	})

	t.Run("list drafts", func(t *testing.T) {
		f := newFixture(t, nil)

		all := decode[[]DraftSummary](t, f.do(t, http.MethodGet, "/api/drafts", ""))
		if len(all) != 2 {
			t.Fatalf("expected 2 drafts, got %d", len(all))
		}

		inA := decode[[]DraftSummary](t, f.do(t, http.MethodGet, "/api/drafts?key=A", ""))
		if len(inA) != 1 || inA[0].Title != "Valsa" {
			t.Errorf("unexpected filter result %+v", inA)
		}

		if w := f.do(t, http.MethodGet, "/api/drafts?key=Q", ""); w.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for unknown key, got %d", w.Code)
		}
	})

	t.Run("get draft by id and sequence", func(t *testing.T) {
		f := newFixture(t, nil)

		for _, ref := range []string{f.draft.ID(), "1"} {
			w := f.do(t, http.MethodGet, "/api/drafts/"+ref, "")
			if w.Code != http.StatusOK {
				t.Fatalf("%s: expected 200, got %d", ref, w.Code)
			}
			body := decode[map[string]any](t, w)
			if body["title"] != "Ensaio" {
				t.Errorf("%s: unexpected title %v", ref, body["title"])
			}
			if clips, _ := body["clips"].([]any); len(clips) != 1 {
				t.Errorf("%s: expected 1 clip, got %v", ref, body["clips"])
			}
		}
	})

	t.Run("missing draft", func(t *testing.T) {
		f := newFixture(t, nil)
		w := f.do(t, http.MethodGet, "/api/drafts/nope", "")

		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
		if body := decode[map[string]string](t, w); !strings.Contains(body["error"], "draft not found") {
			t.Errorf("unexpected error body %v", body)
		}
	})

	t.Run("list clips", func(t *testing.T) {
		f := newFixture(t, nil)
		clips := decode[[]models.AudioClip](t, f.do(t, http.MethodGet, "/api/drafts/"+f.draft.ID()+"/clips", ""))

		if len(clips) != 1 || clips[0].Name != "Intro" || clips[0].SourceURI != "file:///clips/intro.wav" {
			t.Errorf("unexpected clips %+v", clips)
		}
	})

	t.Run("transpose stored draft", func(t *testing.T) {
		f := newFixture(t, nil)
		w := f.do(t, http.MethodPost, "/api/drafts/"+f.draft.ID()+"/transpose", `{"to":"A"}`)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		stored, err := f.drafts.Get(f.draft.ID())
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if stored.Key() != "A" || stored.Content() != "A E/G# F#m D" {
			t.Errorf("unexpected stored draft %s %q", stored.Key(), stored.Content())
		}

		if w := f.do(t, http.MethodPost, "/api/drafts/"+f.draft.ID()+"/transpose", `{"to":"X"}`); w.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for unknown key, got %d", w.Code)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		f := newFixture(t, NewClientLimiter(1, 2))
		codes := []int{}
		for range 3 {
			codes = append(codes, f.do(t, http.MethodGet, "/api/keys", "").Code)
		}
		if codes[2] != http.StatusTooManyRequests {
			t.Errorf("expected third request to be limited, got %v", codes)
		}
	})

	t.Run("healthz", func(t *testing.T) {
		f := newFixture(t, nil)
		if w := f.do(t, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})
}

func TestServer(t *testing.T) {
	t.Run("serves until cancelled", func(t *testing.T) {
		f := newFixture(t, nil)
		srv, err := Listen("127.0.0.1:0", f.router, nil)
		if err != nil {
			t.Fatalf("Listen() error = %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx) }()

		resp, err := http.Get(srv.URL() + "/api/keys")
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	})

	t.Run("address in use", func(t *testing.T) {
		srv, err := Listen("127.0.0.1:0", http.NotFoundHandler(), nil)
		if err != nil {
			t.Fatalf("Listen() error = %v", err)
		}
		defer srv.listener.Close()

		if _, err := Listen(srv.Addr(), http.NotFoundHandler(), nil); err == nil {
			t.Error("expected error binding a taken address")
		}
	})
}
