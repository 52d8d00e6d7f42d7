// Package web serves calendar documents over HTTP for clients that cannot
// render them locally.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/calendar"
	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/shopspring/decimal"
)

var (
	errInvalidForm     = errors.New("invalid form data")
	errInvalidFormJSON = errors.New("invalid JSON in form data")
	errInvalidJSON     = errors.New("invalid JSON")
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Builder renders a calendar document.
type Builder interface {
	Build(method calendar.Method, expenses []model.Expense, at model.ReminderTime) (calendar.File, error)
}

// Server exposes /health and /api/generate-ics.
type Server struct {
	builder Builder
	mux     *http.ServeMux
	listen  string
}

// NewServer constructs a new Server.
func NewServer(builder Builder, listen string) *Server {
	s := &Server{
		builder: builder,
		listen:  listen,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run listens until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "listen", "http://"+s.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/generate-ics", s.handleGenerateICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// generateRequest is the body of /api/generate-ics.
type generateRequest struct {
	Time     string           `json:"time"`
	Mode     string           `json:"mode"`
	Expenses []requestExpense `json:"expenses"`
}

type requestExpense struct {
	Amount   decimal.Decimal `json:"amount"`
	Date     model.Date      `json:"date"`
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Currency model.Currency  `json:"currency"`
	Category model.Category  `json:"category"`
}

func (s *Server) handleGenerateICS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.Expenses) == 0 {
		writeError(w, http.StatusBadRequest, "invalid expenses data")
		return
	}

	at := model.DefaultReminderTime
	if req.Time != "" {
		if at, err = model.ParseReminderTime(req.Time); err != nil {
			writeError(w, http.StatusBadRequest, "invalid time")
			return
		}
	}

	expenses := make([]model.Expense, 0, len(req.Expenses))
	for _, re := range req.Expenses {
		if strings.TrimSpace(re.ID) == "" || !re.Date.Valid() {
			writeError(w, http.StatusBadRequest, "invalid expenses data")
			return
		}
		expenses = append(expenses, model.Expense{
			ID:       re.ID,
			Date:     re.Date,
			Title:    re.Title,
			Amount:   re.Amount,
			Currency: re.Currency,
			Category: re.Category,
		})
	}

	method := calendar.MethodPublish
	if req.Mode == "cancel" {
		method = calendar.MethodCancel
	}

	f, err := s.builder.Build(method, expenses, at)
	if err != nil {
		slog.Error("ICS generation failed", "error", err, "mode", method)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", calendar.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(f.Body); err != nil {
		slog.Warn("Failed to write ICS response", "error", err)
	}
}

// decodeRequest accepts a JSON body or a form whose "json" field holds the
// same JSON, as sent by plain HTML forms.
func decodeRequest(r *http.Request) (generateRequest, error) {
	var req generateRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return req, errInvalidForm
		}
		raw := r.FormValue("json")
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return req, errInvalidFormJSON
		}
		return req, nil
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, errInvalidJSON
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
