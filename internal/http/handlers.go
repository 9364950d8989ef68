package http

import (
	"net/http"

	"ahorro/internal/core"
	"ahorro/internal/services"
)

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.State(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes, false); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.svc.Start(r.Context(), core.ThemeMode(req.Theme), req.ChallengeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.ToggleTheme(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes, true); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Logout(r.Context(), req.Confirm); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes, false); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.svc.UpdateProfile(r.Context(), core.UserProfile{
		Name:    sanitizeInput(req.Name),
		Phone:   sanitizeInput(req.Phone),
		Address: sanitizeInput(req.Address),
		Email:   sanitizeInput(req.Email),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListChallenges(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"challenges": list})
}

func (s *Server) handleSelectChallenge(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes, false); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.svc.SelectChallenge(r.Context(), req.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req customChallengeRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes, false); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	var (
		st  services.State
		err error
	)
	if req.Mode == "range" {
		st, err = s.svc.CreateRangeChallenge(ctx, req.Start.String(), req.End.String())
	} else {
		st, err = s.svc.CreateProgressionChallenge(ctx, req.Start.String(), req.Increment.String(), req.Count.String())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Report(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
