package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gridfed/hginventory/internal/session"
	"github.com/gridfed/hginventory/pkg/errors"
	"github.com/gridfed/hginventory/pkg/types"
)

// MountSessions exposes presence management for host under /sessions:
//
//	GET    /sessions                          list session names
//	POST   /sessions/{session}/presences      enter or replace a presence
//	DELETE /sessions/{session}/presences/{user}  close the user's client
//
// Closing a client runs the host's close listeners before the reply.
func (s *Server) MountSessions(host *session.Host) {
	s.router.Route("/sessions", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			names := []string{}
			for _, sess := range host.Sessions() {
				names = append(names, sess.Name())
			}
			s.respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": names})
		})

		r.Post("/{session}/presences", func(w http.ResponseWriter, r *http.Request) {
			var p types.Presence
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&p); err != nil {
				s.respondError(w, http.StatusBadRequest,
					errors.Wrap(errors.ErrCodeInvalidArgument, "malformed presence", err))
				return
			}
			if p.UserID == uuid.Nil {
				s.respondError(w, http.StatusBadRequest,
					errors.NewError(errors.ErrCodeInvalidArgument, "presence needs a user_id"))
				return
			}
			host.Open(chi.URLParam(r, "session")).Enter(p)
			w.WriteHeader(http.StatusNoContent)
		})

		r.Delete("/{session}/presences/{user}", func(w http.ResponseWriter, r *http.Request) {
			user, err := uuid.Parse(chi.URLParam(r, "user"))
			if err != nil {
				s.respondError(w, http.StatusBadRequest,
					errors.Wrap(errors.ErrCodeInvalidArgument, "invalid user id", err))
				return
			}
			host.ClientClosed(r.Context(), chi.URLParam(r, "session"), user)
			w.WriteHeader(http.StatusNoContent)
		})
	})
}
