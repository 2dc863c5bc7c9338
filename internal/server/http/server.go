package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ledgerq/ledgerq/internal/obligation"
	"github.com/ledgerq/ledgerq/internal/runtime"
	obligsvc "github.com/ledgerq/ledgerq/internal/services/obligations"
	logpkg "github.com/ledgerq/ledgerq/pkg/log"
)

type Server struct {
	rt      *runtime.Runtime
	srv     *http.Server
	lis     net.Listener
	svc     *obligsvc.Service
	logger  logpkg.Logger
	fulfill obligation.Fulfiller
}

// New builds the HTTP API server. fulfill is the default fulfillment effect
// for run requests that do not name a webhook; nil accepts everything.
func New(rt *runtime.Runtime, logger logpkg.Logger, fulfill obligation.Fulfiller) *Server {
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("http"))
	}
	if fulfill == nil {
		fulfill = obligsvc.AcceptAll
	}
	mux := http.NewServeMux()
	s := &Server{
		rt:      rt,
		svc:     obligsvc.NewWithLogger(rt, logger),
		logger:  logger,
		fulfill: fulfill,
		srv:     &http.Server{Handler: cors(mux)},
	}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/ledgers/create", s.handleLedgerCreate)
	mux.HandleFunc("/v1/ledgers", s.handleLedgerList)
	mux.HandleFunc("/v1/obligations/register", s.handleRegister)
	mux.HandleFunc("/v1/obligations/run", s.handleRun)
	mux.HandleFunc("/v1/obligations/compact", s.handleCompact)
	mux.HandleFunc("/v1/obligations/status", s.handleStatus)
	mux.HandleFunc("/v1/obligations/get", s.handleGet)
	mux.HandleFunc("/v1/obligations/history", s.handleHistory)
	mux.HandleFunc("/v1/obligations/pause", s.handlePause)
	mux.HandleFunc("/v1/obligations/resume", s.handleResume)
	mux.Handle("/metrics", promhttp.Handler())
	return s
}

// Service exposes the underlying facade (sweeper control from the daemon).
func (s *Server) Service() *obligsvc.Service { return s.svc }

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() {
	s.svc.Close()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, obligation.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "busy"})
	case errors.Is(err, obligation.ErrPaused):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "paused"})
	case errors.Is(err, obligsvc.ErrUnknownLedger):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, obligation.ErrInconsistentState):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ledgerCreateReq struct {
	Ledger string `json:"ledger"`
}

func (s *Server) handleLedgerCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req ledgerCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	m, err := s.svc.CreateLedger(req.Ledger)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleLedgerList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	all, err := s.svc.ListLedgers()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ledgers": all})
}

type registerReq struct {
	Ledger  string `json:"ledger"`
	Subject string `json:"subject"`
	Amount  uint64 `json:"amount"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.Subject == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "subject is required"})
		return
	}
	slot, err := s.svc.Register(r.Context(), req.Ledger, req.Subject, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"slot": slot})
}

type runReq struct {
	Ledger     string `json:"ledger"`
	Limit      int    `json:"limit"`
	WebhookURL string `json:"webhookUrl"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req runReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	fulfill := s.fulfill
	if req.WebhookURL != "" {
		fulfill = obligsvc.NewWebhookFulfiller(req.WebhookURL)
	}
	res, err := s.svc.Run(r.Context(), req.Ledger, req.Limit, fulfill)
	if err != nil {
		var fe *obligation.FulfillmentError
		if errors.As(err, &fe) {
			// Partial progress is already committed; surface both.
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":   fe.Error(),
				"subject": fe.Subject,
				"slot":    fe.Slot,
				"result":  res,
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type compactReq struct {
	Ledger  string `json:"ledger"`
	MaxScan int    `json:"maxScan"`
}

func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req compactReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	res, err := s.svc.Compact(r.Context(), req.Ledger, req.MaxScan)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	st, err := s.svc.Status(r.URL.Query().Get("ledger"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "subject is required"})
		return
	}
	amount, ok, err := s.svc.Get(r.URL.Query().Get("ledger"), subject)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown subject"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subject": subject, "amount": amount})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	start, _ := strconv.ParseUint(q.Get("start"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	reverse := q.Get("reverse") == "true"
	items, next, err := s.svc.History(q.Get("ledger"), start, limit, reverse)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "next": next})
}

type pauseReq struct {
	Ledger string `json:"ledger"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req pauseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.svc.Pause(req.Ledger); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req pauseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.svc.Resume(req.Ledger); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
