package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
	"github.com/couchcryptid/air-quality-etl/internal/pipeline"
	"github.com/couchcryptid/air-quality-etl/internal/render"
	"github.com/couchcryptid/air-quality-etl/internal/session"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type summaryResponse struct {
	BuiltAt        time.Time         `json:"built_at"`
	Stats          pipeline.RunStats `json:"stats"`
	StationNames   []string          `json:"station_names"`
	PollutantTypes []string          `json:"pollutant_types"`
	DefaultQuery   *domain.Query     `json:"default_query,omitempty"`
}

type colorsResponse struct {
	Colors    map[string]string `json:"colors"`
	Order     []string          `json:"order"`
	Remaining int               `json:"palette_remaining"`
}

type pinRequest struct {
	PollutantType string `json:"pollutant_type"`
	Color         string `json:"color"`
}

func (s *Server) handleStations(w http.ResponseWriter, _ *http.Request) {
	ds, ok := s.dataset(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ds.Registry.Stations())
}

func (s *Server) handlePollutants(w http.ResponseWriter, _ *http.Request) {
	ds, ok := s.dataset(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"pollutant_types": ds.PollutantTypes()})
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	ds, ok := s.dataset(w)
	if !ok {
		return
	}
	resp := summaryResponse{
		BuiltAt:        ds.BuiltAt,
		Stats:          ds.Stats,
		StationNames:   ds.StationNames(),
		PollutantTypes: ds.PollutantTypes(),
	}
	if q, ok := ds.DefaultQuery(); ok {
		resp.DefaultQuery = &q
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	res, ok := s.execute(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	opts := render.DefaultOptions()
	for key, dst := range map[string]*int{"width": &opts.Width, "height": &opts.Height} {
		v := r.URL.Query().Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 4096 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid " + key})
			return
		}
		*dst = n
	}

	res, ok := s.execute(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := render.PNG(&buf, res.Query, res.Series, opts); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleColors(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	var resp colorsResponse
	_ = sess.Do(func(c *domain.ColorAllocator) error {
		resp = snapshot(c)
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

func snapshot(c *domain.ColorAllocator) colorsResponse {
	return colorsResponse{Colors: c.Assignments(), Order: c.Order(), Remaining: c.Remaining()}
}

func (s *Server) handlePinColor(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeBody(w, r, &req); err != nil || req.PollutantType == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be {\"pollutant_type\": ..., \"color\": \"#rrggbb\"}"})
		return
	}

	sess := s.session(w, r)
	var resp colorsResponse
	err := sess.Do(func(c *domain.ColorAllocator) error {
		if err := c.Pin(req.PollutantType, req.Color); err != nil {
			return err
		}
		resp = snapshot(c)
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrColorAssigned):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ds, err := s.pipeline.Run(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNoData) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ds.Stats)
}

// execute decodes a query from the body and runs it within the caller's
// session. It writes the error response itself and reports whether the
// caller should continue.
func (s *Server) execute(w http.ResponseWriter, r *http.Request) (pipeline.Result, bool) {
	var q domain.Query
	if err := decodeBody(w, r, &q); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid query: " + err.Error()})
		return pipeline.Result{}, false
	}
	ds, ok := s.dataset(w)
	if !ok {
		return pipeline.Result{}, false
	}

	sess := s.session(w, r)
	var res pipeline.Result
	err := sess.Do(func(c *domain.ColorAllocator) error {
		var err error
		res, err = s.pipeline.Execute(ds, q, c)
		return err
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return pipeline.Result{}, false
	}
	return res, true
}

func (s *Server) dataset(w http.ResponseWriter) (*pipeline.Dataset, bool) {
	ds := s.pipeline.Dataset()
	if ds == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "dataset not built yet"})
		return nil, false
	}
	return ds, true
}

// session resolves the caller's session and echoes its id.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess, created := s.sessions.GetOrCreate(r.Header.Get(SessionHeader))
	if created {
		s.logger.Debug("session started", "session_id", sess.ID)
	}
	w.Header().Set(SessionHeader, sess.ID)
	return sess
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
