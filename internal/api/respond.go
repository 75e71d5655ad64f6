package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"energyweb/internal/catalog"
	"energyweb/internal/dataset"
	"energyweb/internal/resolution"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeError maps err onto a status code. Only unexpected errors are logged
// at Error level.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.log.WithFields(logrus.Fields{
		"request_id": w.Header().Get(requestIDHeader),
		"path":       r.URL.Path,
	})

	var verr *dataset.ValidationError
	switch {
	case errors.As(err, &verr):
		log.WithError(err).Info("Rejected request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, catalog.ErrUnknownBuilding), errors.Is(err, resolution.ErrInvalidResolution):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, resolution.ErrUnsupportedResolution):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dataset.ErrCatalogNotLoaded):
		writeMessage(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.WithError(err).Error("Request failed")
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}
