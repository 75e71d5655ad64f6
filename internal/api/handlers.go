package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"energyweb/internal/catalog"
	"energyweb/internal/dataset"
	"energyweb/internal/model"
	"energyweb/internal/resolution"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	_, err := s.assembler.Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"catalog_loaded": err == nil,
	})
}

func policy(family string) dataset.Policy {
	if family == dataset.FamilyDataAccess {
		return dataset.Unrestricted
	}
	return dataset.Static
}

// epoch reads a path variable of epoch seconds (or milliseconds with ms set).
func epoch(vars map[string]string, key string, ms bool) (time.Time, error) {
	n, err := strconv.ParseInt(vars[key], 10, 64)
	if err != nil {
		return time.Time{}, &dataset.ValidationError{Field: key, Message: "Enter a whole number."}
	}
	if ms {
		return time.UnixMilli(n).UTC(), nil
	}
	return time.Unix(n, 0).UTC(), nil
}

func (s *Server) dynamic(w http.ResponseWriter, r *http.Request) {
	start, err := epoch(mux.Vars(r), "start", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.assembler.DynamicGraph(r.Context(), start)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// validRange turns the range path variables into a validated range.
func (s *Server) validRange(r *http.Request) (dataset.Range, error) {
	vars := mux.Vars(r)
	start, err := epoch(vars, "start", false)
	if err != nil {
		return dataset.Range{}, err
	}
	end, err := epoch(vars, "end", false)
	if err != nil {
		return dataset.Range{}, err
	}
	return dataset.Validate(start, end, vars["res"], policy(vars["family"]), s.assembler.Options().MaxPoints)
}

func (s *Server) rangeJSON(w http.ResponseWriter, r *http.Request) {
	rng, err := s.validRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.assembler.PointDump(r.Context(), rng.Start, rng.End, rng.Resolution)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) rangeCSV(w http.ResponseWriter, r *http.Request) {
	rng, err := s.validRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := s.assembler.WriteCSV(r.Context(), &buf, rng.Start, rng.End, rng.Resolution); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+dataset.CSVFilename(rng.Start, rng.End))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	family := mux.Vars(r)["family"]
	q := r.URL.Query()
	opts := s.assembler.Options()

	rng, err := dataset.ValidateForm(
		q.Get("start_0"), q.Get("start_1"),
		q.Get("end_0"), q.Get("end_1"),
		q.Get("res"), opts.Location, policy(family), opts.MaxPoints,
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.assembler.StaticGraph(family, rng)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// detailArgs reads building, view and the anchor (epoch ms).
func detailArgs(r *http.Request) (string, resolution.Resolution, time.Time, error) {
	vars := mux.Vars(r)
	view, err := resolution.Parse(vars["view"])
	if err != nil {
		return "", "", time.Time{}, err
	}
	anchor, err := epoch(vars, "start", true)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return vars["building"], view, anchor, nil
}

func (s *Server) detailGraph(w http.ResponseWriter, r *http.Request) {
	building, view, anchor, err := detailArgs(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.assembler.DetailGraph(r.Context(), building, view, anchor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) detailTable(w http.ResponseWriter, r *http.Request) {
	building, view, anchor, err := detailArgs(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.assembler.DetailTable(r.Context(), building, view, anchor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) energyTable(w http.ResponseWriter, r *http.Request) {
	t, err := s.assembler.StatisticsTable(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) sensorGroups(w http.ResponseWriter, r *http.Request) {
	scope := model.Scope(mux.Vars(r)["scope"])
	if !scope.Valid() || (scope == model.ScopeAcademic && !s.opts.ShowAcademic) {
		writeMessage(w, http.StatusNotFound, "unknown scope")
		return
	}
	c, err := s.assembler.Catalog()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	groups := c.ByScope(scope)
	if groups == nil {
		groups = []catalog.Group{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sensor_groups": groups})
}
