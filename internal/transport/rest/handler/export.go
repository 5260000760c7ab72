package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"provsurvey/internal/service"
	"provsurvey/internal/transport/rest/middleware"
)

// ExportHandler serves the delimited answer export
type ExportHandler struct {
	exportSvc         *service.ExportService
	separator         string
	internalSeparator string
	log               *zap.Logger
}

// NewExportHandler creates a new export handler with the default separators
func NewExportHandler(exportSvc *service.ExportService, separator, internalSeparator string, log *zap.Logger) *ExportHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExportHandler{
		exportSvc:         exportSvc,
		separator:         separator,
		internalSeparator: internalSeparator,
		log:               log,
	}
}

// Export handles GET /v1/exports/{receiver}?raw=1&sep=;&isep=,
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	receiver := mux.Vars(r)["receiver"]
	q := r.URL.Query()

	raw := false
	if v := q.Get("raw"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "raw must be a boolean")
			return
		}
		raw = b
	}

	sep := h.separator
	if v := q.Get("sep"); v != "" {
		sep = v
	}
	if utf8.RuneCountInString(sep) != 1 {
		writeError(w, http.StatusBadRequest, service.ErrInvalidSeparator.Error())
		return
	}
	comma, _ := utf8.DecodeRuneInString(sep)

	isep := h.internalSeparator
	if q.Has("isep") {
		isep = q.Get("isep")
	}

	var buf bytes.Buffer
	n, err := h.exportSvc.Export(r.Context(), &buf, service.ExportOptions{
		Receiver:          receiver,
		Raw:               raw,
		Separator:         comma,
		InternalSeparator: isep,
	})
	if errors.Is(err, service.ErrInvalidReceiver) || errors.Is(err, service.ErrInvalidSeparator) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	h.log.Info("export served",
		zap.String("admin", middleware.GetAdminUser(r.Context())),
		zap.String("receiver", receiver),
		zap.Int("respondents", n))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", receiver+".csv"))
	w.Header().Set("X-Export-Rows", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
