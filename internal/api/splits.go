package api

import (
	"net/http"

	"github.com/Veraticus/billsplit/internal/model"
)

// splitPatch holds the fields a PUT may change. Absent fields keep their value.
type splitPatch struct {
	Name   *string         `json:"name"`
	People *[]model.Person `json:"people"`
}

func (s *Server) listSplits(w http.ResponseWriter, r *http.Request) {
	splits, err := s.store.GetSplits(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, splits)
}

func (s *Server) createSplit(w http.ResponseWriter, r *http.Request) {
	var split model.Split
	if err := decodeBody(r, &split); err != nil {
		s.fail(w, r, err)
		return
	}
	split.ID = 0

	if err := s.store.CreateSplit(r.Context(), &split); err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.store.GetSplit(r.Context(), split.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getSplit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	split, err := s.store.GetSplit(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, split)
}

func (s *Server) updateSplit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	split, err := s.store.GetSplit(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var patch splitPatch
	if err := decodeBody(r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	if patch.Name != nil {
		split.Name = *patch.Name
	}
	if patch.People != nil {
		split.People = *patch.People
	}

	if err := s.store.UpdateSplit(r.Context(), split); err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.store.GetSplit(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteSplit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeleteSplit(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, "Split deleted")
}
