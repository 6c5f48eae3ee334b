// Package web serves the study page, the JSON answer API and live session progress.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/loqalabs/juggie/internal/catalog"
	"github.com/loqalabs/juggie/internal/eventstore"
	"github.com/loqalabs/juggie/internal/protocol"
	"github.com/loqalabs/juggie/internal/session"
)

//go:embed templates/index.html
var templateFS embed.FS

const maxBodyBytes = 64 << 10

// Runner executes sessions. *session.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, req catalog.Request, opts ...session.RunOption) (*session.Result, error)
}

// History reads stored session timelines. *eventstore.Store satisfies it.
type History interface {
	GetSession(ctx context.Context, sessionID string) (*eventstore.Session, error)
	ListSessionEvents(ctx context.Context, sessionID string, limit int) ([]eventstore.Event, error)
	RecentSessions(ctx context.Context, limit int) ([]eventstore.Session, error)
}

// ProgressSource delivers the progress events of one session. *bus.Client satisfies it.
type ProgressSource interface {
	SubscribeProgress(sessionID string, handler func(protocol.ProgressEvent)) (func(), error)
}

// Handler routes the browser and API surface. History and Progress may be nil.
type Handler struct {
	runner   Runner
	history  History
	progress ProgressSource
	page     *template.Template
	log      *slog.Logger
	mux      *http.ServeMux
}

func NewHandler(runner Runner, history History, progress ProgressSource, log *slog.Logger) (*Handler, error) {
	if runner == nil {
		return nil, errors.New("web: runner is required")
	}
	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	h := &Handler{
		runner:   runner,
		history:  history,
		progress: progress,
		page:     page,
		log:      log.With(slog.String("component", "web")),
		mux:      http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /{$}", h.handleIndex)
	h.mux.HandleFunc("POST /answer", h.handleAnswerForm)
	h.mux.HandleFunc("POST /api/answer", h.handleAnswerAPI)
	h.mux.HandleFunc("GET /api/languages", h.handleLanguages)
	h.mux.HandleFunc("GET /api/sessions", h.handleRecentSessions)
	h.mux.HandleFunc("GET /api/sessions/{id}/events", h.handleSessionEvents)
	h.mux.HandleFunc("GET /ws/progress", h.handleProgress)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type formValues struct {
	Question string
	Subject  string
	Marks    string
	Language string
}

type resultView struct {
	Answer    string
	WordCount int
	WordLimit int
	Notices   []string
	AudioURI  template.URL
	FileName  string
}

type pageData struct {
	Form      formValues
	Marks     []catalog.Marks
	Languages []catalog.Language
	Error     string
	Result    *resultView
}

func (h *Handler) render(w http.ResponseWriter, status int, data pageData) {
	data.Marks = catalog.MarksOptions()
	data.Languages = catalog.Languages()
	if data.Form.Marks == "" {
		data.Form.Marks = "5"
	}
	if data.Form.Language == "" {
		data.Form.Language = "English"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.page.Execute(w, data); err != nil {
		h.log.Error("render page", slogError(err))
	}
}

func (h *Handler) handleIndex(w http.ResponseWriter, _ *http.Request) {
	h.render(w, http.StatusOK, pageData{})
}

func (h *Handler) handleAnswerForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, pageData{Error: "could not read the form"})
		return
	}
	form := formValues{
		Question: r.PostForm.Get("question"),
		Subject:  r.PostForm.Get("subject"),
		Marks:    r.PostForm.Get("marks"),
		Language: r.PostForm.Get("language"),
	}
	req, err := catalog.NewRequest(form.Question, form.Subject, form.Marks, form.Language)
	if err != nil {
		h.render(w, http.StatusBadRequest, pageData{Form: form, Error: err.Error()})
		return
	}
	res, err := h.runner.Run(r.Context(), req, session.WithClientSessionID(r.PostForm.Get("session_id")))
	if err != nil {
		h.render(w, statusFor(err), pageData{Form: form, Error: err.Error()})
		return
	}
	h.render(w, http.StatusOK, pageData{Form: form, Result: newResultView(res)})
}

func newResultView(res *session.Result) *resultView {
	view := &resultView{
		Answer:    res.Answer,
		WordCount: res.WordCount(),
		WordLimit: res.WordLimit,
		Notices:   session.NoticeMessages(res.Notices),
	}
	if res.Audio != nil {
		// data URIs are otherwise rejected by html/template's URL sanitizer.
		view.AudioURI = template.URL(res.Audio.DataURI())
		view.FileName = res.Audio.FileName
	}
	return view
}

func (h *Handler) handleAnswerAPI(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	var in protocol.AnswerRequest
	if err := sonic.Unmarshal(body, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req, err := catalog.NewRequest(in.Question, in.Subject, strconv.Itoa(in.Marks), in.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.runner.Run(r.Context(), req, session.WithClientSessionID(in.SessionID))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res.Response())
}

func (h *Handler) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	langs := catalog.Languages()
	out := make([]protocol.LanguageInfo, 0, len(langs))
	for _, l := range langs {
		code, _ := l.TranslationCode()
		out = append(out, protocol.LanguageInfo{Name: l.Name, TranslationCode: code, Voice: l.Voice()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleRecentSessions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, []protocol.SessionHistory{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > 100 {
		limit = 100
	}
	sessions, err := h.history.RecentSessions(r.Context(), limit)
	if err != nil {
		h.log.Error("list sessions", slogError(err))
		writeError(w, http.StatusInternalServerError, "could not list sessions")
		return
	}
	out := make([]protocol.SessionHistory, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionHistory(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func sessionHistory(sess eventstore.Session) protocol.SessionHistory {
	return protocol.SessionHistory{
		SessionID: sess.ID,
		Question:  sess.Question,
		Subject:   sess.Subject,
		Marks:     sess.Marks,
		Language:  sess.Language,
		Outcome:   sess.Outcome,
		CreatedAt: sess.CreatedAt,
	}
}

func (h *Handler) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if h.history == nil {
		writeError(w, http.StatusNotFound, "session history is disabled")
		return
	}
	sess, err := h.history.GetSession(r.Context(), id)
	if err != nil {
		h.log.Error("load session", slog.String("session_id", id), slogError(err))
		writeError(w, http.StatusInternalServerError, "could not load session")
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	events, err := h.history.ListSessionEvents(r.Context(), id, 0)
	if err != nil {
		h.log.Error("load session events", slog.String("session_id", id), slogError(err))
		writeError(w, http.StatusInternalServerError, "could not load session")
		return
	}
	out := sessionHistory(*sess)
	out.Events = make([]protocol.SessionEvent, 0, len(events))
	for _, e := range events {
		out.Events = append(out.Events, protocol.SessionEvent{Type: e.Type, Message: e.Message, CreatedAt: e.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func statusFor(err error) int {
	var genErr *session.GenerationError
	switch {
	case errors.Is(err, catalog.ErrEmptyQuestion),
		errors.Is(err, catalog.ErrUnsupportedMarks),
		errors.Is(err, catalog.ErrUnsupportedLanguage):
		return http.StatusBadRequest
	case errors.As(err, &genErr):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, protocol.ErrorResponse{Error: message})
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
