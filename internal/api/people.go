package api

import (
	"errors"
	"net/http"

	"github.com/Veraticus/billsplit/internal/common"
)

// getUser returns the current user. Without authentication this is the
// first person on record.
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetFirstPerson(r.Context())
	if errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No user found")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) listPeople(w http.ResponseWriter, r *http.Request) {
	people, err := s.store.GetPeople(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, people)
}
