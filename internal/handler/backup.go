package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ButBow/kernel-gmbh-sub000/internal/backup"
	"github.com/ButBow/kernel-gmbh-sub000/internal/content"
	"github.com/ButBow/kernel-gmbh-sub000/internal/model"
	"github.com/ButBow/kernel-gmbh-sub000/internal/snapshot"
)

// maxSnapshotBytes bounds uploaded snapshot bodies.
const maxSnapshotBytes = 32 << 20

type BackupHandler struct {
	mgr    *backup.Manager
	logger *slog.Logger
}

func NewBackupHandler(mgr *backup.Manager, logger *slog.Logger) *BackupHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupHandler{mgr: mgr, logger: logger}
}

// importResponse is the client view of an import. The normalized document
// itself is not echoed back.
type importResponse struct {
	OpID        string            `json:"op_id"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	Migrated    bool              `json:"migrated"`
	FromVersion int               `json:"from_version,omitempty"`
	ToVersion   int               `json:"to_version,omitempty"`
	Present     []snapshot.Domain `json:"present,omitempty"`
	Skipped     []snapshot.Domain `json:"skipped,omitempty"`
	Notes       []string          `json:"notes,omitempty"`
	Applied     *content.Applied  `json:"applied,omitempty"`
	Record      *model.Backup     `json:"record,omitempty"`
}

// Export streams a snapshot of live data as a file download. Each domain can
// be toggled with a boolean query parameter, e.g. ?analytics=true&posts=false.
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	opts := snapshot.DefaultOptions()
	q := r.URL.Query()
	for _, d := range snapshot.AllDomains {
		v := q.Get(string(d))
		if v == "" {
			continue
		}
		on, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("%s must be true or false", d)})
			return
		}
		opts.Set(d, on)
	}

	exp, err := h.mgr.Export(r.Context(), opts)
	if err != nil {
		h.logger.Error("export snapshot", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to export backup"})
		return
	}

	w.Header().Set("Content-Type", snapshot.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exp.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(exp.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(exp.Data)
}

// Validate reports on an uploaded snapshot without importing it. An invalid
// snapshot is still a 200; only an unparseable body is a 400.
func (h *BackupHandler) Validate(w http.ResponseWriter, r *http.Request) {
	candidate, ok := h.readSnapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.mgr.Validate(r.Context(), candidate))
}

// Import validates, migrates and applies an uploaded snapshot. The mode query
// parameter picks replace (default) or merge.
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	mode, err := content.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	candidate, ok := h.readSnapshot(w, r)
	if !ok {
		return
	}

	out, err := h.mgr.Import(r.Context(), candidate, backup.Source{
		Filename: r.URL.Query().Get("filename"),
		Size:     r.ContentLength,
	}, mode)
	h.writeImport(w, out, err)
}

// History lists recent exports, imports and offsite copies.
func (h *BackupHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	records, err := h.mgr.History(limit)
	if err != nil {
		h.logger.Error("list backup history", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list backups"})
		return
	}
	if records == nil {
		records = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Status reports the offsite backup state.
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mgr.Status())
}

// Offsite encrypts a full snapshot and uploads it.
func (h *BackupHandler) Offsite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	rec, err := h.mgr.PushOffsite(r.Context(), req.Passphrase)
	switch {
	case errors.Is(err, backup.ErrNoPassphrase):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, backup.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case err != nil:
		h.logger.Error("offsite push", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "offsite upload failed"})
	default:
		writeJSON(w, http.StatusCreated, rec)
	}
}

// Restore pulls an offsite snapshot and imports it.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key        string `json:"key"`
		Passphrase string `json:"passphrase"`
		Mode       string `json:"mode"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key is required"})
		return
	}
	mode, err := content.ParseMode(req.Mode)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	out, err := h.mgr.RestoreOffsite(r.Context(), req.Key, req.Passphrase, mode)
	switch {
	case errors.Is(err, backup.ErrNoPassphrase):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, backup.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.Is(err, backup.ErrDecrypt):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, backup.ErrIncomplete):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		h.writeImport(w, out, err)
	}
}

func (h *BackupHandler) writeImport(w http.ResponseWriter, out *backup.ImportOutcome, err error) {
	if out == nil {
		h.logger.Error("import snapshot", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to import backup"})
		return
	}

	res := out.Result
	resp := importResponse{
		OpID:        out.OpID,
		Success:     res.Success && err == nil,
		Error:       res.Error,
		Migrated:    res.Migrated,
		FromVersion: res.FromVersion,
		ToVersion:   res.ToVersion,
		Present:     res.Present,
		Skipped:     res.Skipped,
		Notes:       res.Notes,
		Applied:     out.Applied,
		Record:      out.Record,
	}

	switch {
	case errors.Is(err, snapshot.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, resp)
	case err != nil:
		h.logger.Error("import snapshot", "op_id", out.OpID, "error", err)
		resp.Error = "failed to apply backup"
		writeJSON(w, http.StatusInternalServerError, resp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// readSnapshot parses the request body. On failure it writes a 400 and
// reports false.
func (h *BackupHandler) readSnapshot(w http.ResponseWriter, r *http.Request) (any, bool) {
	candidate, err := snapshot.ReadFrom(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
	if err != nil {
		var pe *snapshot.ParseError
		msg := "failed to read backup"
		if errors.As(err, &pe) {
			msg = pe.Error()
		}
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			msg = "backup file too large"
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return nil, false
	}
	return candidate, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
