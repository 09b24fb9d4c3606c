package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/compuse/internal/chords"
	"github.com/desertthunder/compuse/internal/formatter"
	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/shared"
	"github.com/desertthunder/compuse/internal/tasks"
)

// maxBodyBytes caps request bodies; chord sheets are small.
const maxBodyBytes = 1 << 20

// DraftSource reads stored drafts.
type DraftSource interface {
	Get(id string) (*models.Draft, error)
	GetBySequence(sequence int) (*models.Draft, error)
	List(criteria map[string]any) ([]*models.Draft, error)
}

// ClipSource reads the stored clips of a draft.
type ClipSource interface {
	ListByDraft(draftID string) ([]*models.PersistedClip, error)
}

// Transposer rewrites a stored draft into another key.
type Transposer interface {
	TransposeDraft(ctx context.Context, progress chan<- tasks.ProgressUpdate, draftID, target string) (*tasks.TransposeResult, error)
}

// TransposeRequest is the body of POST /api/transpose.
//
// Semitones is used when From and To are both empty.
type TransposeRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Semitones int    `json:"semitones"`
	Text      string `json:"text"`
}

// TransposeResponse is the result of a transposition.
type TransposeResponse struct {
	From     string   `json:"from,omitempty"`
	To       string   `json:"to,omitempty"`
	Interval int      `json:"interval"`
	Text     string   `json:"text"`
	Chords   []string `json:"chords"`
}

// DraftSummary is a draft in listings.
type DraftSummary struct {
	ID       string `json:"id"`
	Sequence int    `json:"sequence"`
	Title    string `json:"title"`
	Key      string `json:"key"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// API serves the JSON endpoints over drafts, clips and the chord transposer.
type API struct {
	mux        *http.ServeMux
	drafts     DraftSource
	clips      ClipSource
	transposer Transposer
	logger     *log.Logger
}

var _ Handler = (*API)(nil)

// NewAPI creates the API. transposer may be nil, in which case stored drafts cannot be transposed.
func NewAPI(drafts DraftSource, clips ClipSource, transposer Transposer, logger *log.Logger) *API {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	a := &API{
		mux:        http.NewServeMux(),
		drafts:     drafts,
		clips:      clips,
		transposer: transposer,
		logger:     logger,
	}

	a.mux.HandleFunc("GET /api/keys", a.keys)
	a.mux.HandleFunc("POST /api/transpose", a.transpose)
	a.mux.HandleFunc("GET /api/drafts", a.listDrafts)
	a.mux.HandleFunc("GET /api/drafts/{id}", a.getDraft)
	a.mux.HandleFunc("GET /api/drafts/{id}/clips", a.listClips)
	a.mux.HandleFunc("POST /api/drafts/{id}/transpose", a.transposeDraft)
	return a
}

// Routes returns the prefix the API owns; methods are matched internally.
func (a *API) Routes() []string {
	return []string{"/api/"}
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) keys(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	for _, k := range chords.Keys() {
		names = append(names, k.String())
	}
	writeJSON(w, http.StatusOK, map[string][]string{"keys": names})
}

func (a *API) transpose(w http.ResponseWriter, r *http.Request) {
	var req TransposeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var resp TransposeResponse
	if req.From == "" && req.To == "" {
		resp.Interval = chords.Interval(chords.C, chords.C.Shift(req.Semitones))
		resp.Text = chords.TransposeBy(req.Semitones, req.Text)
	} else {
		from, err := chords.ParseKey(req.From)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("from: %v", err))
			return
		}
		to, err := chords.ParseKey(req.To)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("to: %v", err))
			return
		}
		resp.From, resp.To = from.String(), to.String()
		resp.Interval = chords.Interval(from, to)
		resp.Text = chords.Transpose(from, to, req.Text)
	}
	resp.Chords = formatter.ChordNames(resp.Text)

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) listDrafts(w http.ResponseWriter, r *http.Request) {
	criteria := map[string]any{}
	if key := r.URL.Query().Get("key"); key != "" {
		k, err := chords.ParseKey(key)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		criteria["key"] = k.String()
	}
	if title := r.URL.Query().Get("title"); title != "" {
		criteria["title"] = title
	}

	drafts, err := a.drafts.List(criteria)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	summaries := make([]DraftSummary, 0, len(drafts))
	for _, d := range drafts {
		summaries = append(summaries, DraftSummary{ID: d.ID(), Sequence: d.Sequence(), Title: d.Title(), Key: d.Key()})
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (a *API) getDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := a.lookup(r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	clips, err := a.storedClips(draft.ID())
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, formatter.Metadata(&formatter.DraftExport{Draft: draft, Clips: clips}))
}

func (a *API) listClips(w http.ResponseWriter, r *http.Request) {
	draft, err := a.lookup(r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	clips, err := a.storedClips(draft.ID())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clips)
}

func (a *API) transposeDraft(w http.ResponseWriter, r *http.Request) {
	if a.transposer == nil {
		writeError(w, http.StatusServiceUnavailable, "transposing drafts is not available")
		return
	}

	var req struct {
		To string `json:"to"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	draft, err := a.lookup(r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	result, err := a.transposer.TransposeDraft(r.Context(), nil, draft.ID(), req.To)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, formatter.Metadata(&formatter.DraftExport{Draft: result.Draft}))
}

// lookup resolves a draft by ID, or by sequence number when ref is numeric.
func (a *API) lookup(ref string) (*models.Draft, error) {
	if seq, err := strconv.Atoi(ref); err == nil {
		return a.drafts.GetBySequence(seq)
	}
	return a.drafts.Get(ref)
}

func (a *API) storedClips(draftID string) ([]models.AudioClip, error) {
	rows, err := a.clips.ListByDraft(draftID)
	if err != nil {
		return nil, err
	}
	clips := make([]models.AudioClip, len(rows))
	for i, row := range rows {
		clips[i] = row.Clip()
	}
	return clips, nil
}

// fail maps domain errors onto status codes.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrDraftNotFound), errors.Is(err, shared.ErrClipNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
