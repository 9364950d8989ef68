package http

import "net/http"

func (s *Server) handleToggleSlot(w http.ResponseWriter, r *http.Request) {
	value, err := slotValue(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Toggle(r.Context(), value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes, false); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Withdraw(r.Context(), req.Amount.String())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCashOut(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes, true); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.CashOut(r.Context(), req.Confirm)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"messages": s.svc.Transcript()})
}

func (s *Server) handleAdvise(w http.ResponseWriter, r *http.Request) {
	var req adviceRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes, false); err != nil {
		writeError(w, r, err)
		return
	}
	msg, err := s.svc.Advise(r.Context(), req.Query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
