package http

import (
	"bytes"
	"net/http"

	"ahorro/internal/backup"
)

func (s *Server) handleExportBackup(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.ExportBackup(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := b.Marshal()
	if err != nil {
		writeError(w, r, err)
		return
	}
	attachment(w, "application/json", backup.FileName(s.now()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImportBackup(w http.ResponseWriter, r *http.Request) {
	var req backupRequest
	if err := decodeJSON(w, r, &req, maxBackupBytes, false); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.svc.ImportBackup(r.Context(), req.Backup, req.Confirm)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.svc.State(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restoredKeys": n, "state": st})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	name, err := s.svc.ExportCSV(r.Context(), &buf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	attachment(w, "text/csv; charset=utf-8", name)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, s.svc.ImportCSV(r.Context(), r.Body))
}
