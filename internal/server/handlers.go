package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/woozymasta/gameroom/internal/apierr"
	"github.com/woozymasta/gameroom/internal/models"
	"github.com/woozymasta/gameroom/internal/vars"
)

// handleCreate registers a new game server from the JSON body.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if s.expectedCT != "" && ct != "" && !strings.HasPrefix(ct, s.expectedCT) {
		zerolog.Ctx(r.Context()).Debug().
			Str("content_type", ct).
			Str("expected", s.expectedCT).
			Msg("Invalid Content-Type")

		writeJSON(w, http.StatusUnsupportedMediaType,
			models.NewErrorResponse(http.StatusUnsupportedMediaType, "Content-Type must be "+s.expectedCT))
		return
	}

	// Max body limit size
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge,
				models.NewErrorResponse(http.StatusRequestEntityTooLarge, "Input json is too large"))
			return
		}
		s.respondError(w, r, apierr.NewInvalidJSON(err))
		return
	}

	srv, err := s.rooms.Create(r.Context(), AuthKey(r), body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.NewResponse(http.StatusCreated, srv))
}

// handleList returns every registered game server.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	servers, err := s.rooms.List(r.Context(), AuthKey(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewResponse(http.StatusOK, servers))
}

// handleListByGame returns the servers of a game and version.
func (s *Server) handleListByGame(w http.ResponseWriter, r *http.Request) {
	servers, err := s.rooms.ListByGame(r.Context(), AuthKey(r), r.PathValue("game"), r.PathValue("version"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewResponse(http.StatusOK, servers))
}

// handleGet returns the full record of a game server.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	srv, err := s.rooms.Get(r.Context(), AuthKey(r), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewResponse(http.StatusOK, srv))
}

// handleStatus performs a live A2S query to a registered game server.
// It acts as a proxy to retrieve real-time server status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.rooms.Status(r.Context(), AuthKey(r), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewResponse(http.StatusOK, info))
}

// handleShutdown terminates a game server and frees its port.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if err := s.rooms.Shutdown(r.Context(), AuthKey(r), r.PathValue("id")); err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewResponse(http.StatusOK, struct{}{}))
}

// handleHealth reports whether the storage session is usable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.health.IsConnected(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable,
			models.NewErrorResponse(http.StatusServiceUnavailable, apierr.NewBackendUnavailable(nil).Message))
		return
	}

	writeJSON(w, http.StatusOK, models.NewResponse(http.StatusOK, map[string]string{"status": "ok"}))
}

// handleVersion returns the build info.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.NewResponse(http.StatusOK, vars.Ver()))
}

// respondError writes the envelope of a categorized error. Causes are logged, never sent.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierr.StatusOf(err)

	event := zerolog.Ctx(r.Context()).Debug()
	if status >= http.StatusInternalServerError {
		event = zerolog.Ctx(r.Context()).Error()
	}
	event.Err(err).Str("kind", string(apierr.KindOf(err))).Int("status", status).Msg("Request failed")

	writeJSON(w, status, models.NewErrorResponse(status, apierr.MessageOf(err)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
