// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

// Package collector serves the activity collection endpoint.
package collector

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"tab_monitor/internal/db"
	"tab_monitor/internal/dto"
	"tab_monitor/internal/sender"
)

// MaxBodySize bounds a single decoded activity record
const MaxBodySize = 1 << 20

// Store persists accepted records
type Store interface {
	InsertActivity(ctx context.Context, a db.Activity) error
	ListActivity(ctx context.Context, action dto.Action, limit int) ([]db.Activity, error)
	CountActivity(ctx context.Context) (int, error)
	SchemaVersion() (int, error)
}

type logResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Server handles collector requests
type Server struct {
	store       Store
	broadcaster *Broadcaster
	logger      *log.Logger
	now         func() time.Time

	allowedOrigins map[string]bool
	anyOrigin      bool
}

// NewServer creates a server. An origin of "*" allows every origin.
func NewServer(store Store, broadcaster *Broadcaster, allowedOrigins []string, logger *log.Logger) *Server {
	s := &Server{
		store:          store,
		broadcaster:    broadcaster,
		logger:         logger,
		now:            time.Now,
		allowedOrigins: make(map[string]bool),
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSuffix(strings.TrimSpace(origin), "/")
		switch trimmed {
		case "":
		case "*":
			s.anyOrigin = true
		default:
			s.allowedOrigins[trimmed] = true
		}
	}

	return s
}

// ExtensionOrigins returns the chrome-extension origins for ids
func ExtensionOrigins(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, "chrome-extension://"+id)
		}
	}
	return out
}

// Router builds the HTTP routes
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.cors)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc(sender.LogActivityPath, s.handleLogActivity).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/activity", s.handleListActivity).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	return r
}

func (s *Server) originAllowed(origin string) bool {
	return s.anyOrigin || s.allowedOrigins[origin]
}

// cors answers preflights and tags responses for allowed origins
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Encoding")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.CountActivity(r.Context())
	if err != nil {
		s.logger.Printf("Error: health check failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "error", "error": err.Error()})
		return
	}
	version, err := s.store.SchemaVersion()
	if err != nil {
		s.logger.Printf("Error: health check failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "error", "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"records":        records,
		"schema_version": version,
		"feed_clients":   s.broadcaster.ClientCount(),
	})
}

func (s *Server) handleLogActivity(w http.ResponseWriter, r *http.Request) {
	record, err := decodeRecord(r)
	if err != nil {
		s.logger.Printf("Error: rejected activity from %s: %v", r.RemoteAddr, err)
		writeJSON(w, http.StatusBadRequest, logResponse{Error: err.Error()})
		return
	}

	a := db.Activity{
		ID:         uuid.New().String(),
		ReceivedAt: s.now(),
		Record:     record,
	}
	if err := s.store.InsertActivity(r.Context(), a); err != nil {
		s.logger.Printf("Error logging activity: %v", err)
		writeJSON(w, http.StatusInternalServerError, logResponse{Error: "failed to store activity"})
		return
	}

	s.broadcaster.Publish(a)
	writeJSON(w, http.StatusOK, logResponse{Success: true, ID: a.ID})
}

func decodeRecord(r *http.Request) (dto.ActivityRecord, error) {
	var body io.Reader = r.Body
	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			return dto.ActivityRecord{}, fmt.Errorf("invalid gzip body: %w", err)
		}
		defer gz.Close()
		body = gz
	}
	// Bounded after decompression
	body = io.LimitReader(body, MaxBodySize+1)

	data, err := io.ReadAll(body)
	if err != nil {
		return dto.ActivityRecord{}, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > MaxBodySize {
		return dto.ActivityRecord{}, errors.New("body too large")
	}

	var record dto.ActivityRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return dto.ActivityRecord{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if !record.Action.Valid() {
		return dto.ActivityRecord{}, fmt.Errorf("unknown action %q", record.Action)
	}
	return record, nil
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	action := dto.Action(r.URL.Query().Get("action"))
	if action != "" && !action.Valid() {
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	items, err := s.store.ListActivity(r.Context(), action, limit)
	if err != nil {
		s.logger.Printf("Error listing activity: %v", err)
		http.Error(w, "failed to list activity", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []db.Activity{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("ws upgrade error: %v", err)
		return
	}

	s.logger.Printf("Feed client connected: %s", r.RemoteAddr)
	c := s.broadcaster.AddClient(conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			s.logger.Printf("Feed client disconnected: %s", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves handler on addr until ctx is done
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Collector listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	}
}
