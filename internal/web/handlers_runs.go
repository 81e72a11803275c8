package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/JonMunkholm/bulkimport/internal/logging"
)

// errFileTooLarge is returned when an upload exceeds UPLOAD_MAX_FILE_SIZE.
var errFileTooLarge = errors.New("file too large")

// handleHealth reports liveness and execution slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"runs":       s.service.RunCount(),
		"executions": s.service.ExecLimiterStatus(),
	})
}

// handleListPipelines returns every registered pipeline.
func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Pipelines())
}

// handleCreateRun starts a run for the pipeline and loads the uploaded file.
// A file that cannot be read discards the run.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	c, err := s.service.StartRun(r.Context(), chi.URLParam(r, "pipeline"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if _, err := c.Upload(name, data); err != nil {
		_ = s.service.DeleteRun(c.ID())
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "run_id", c.ID()).Info("file uploaded",
		"file", name,
		"bytes", len(data),
	)
	writeJSON(w, http.StatusCreated, newRunView(c, s.cfg.Upload.PreviewRows))
}

// handleReplaceFile loads a new file into a run in the upload step.
func (s *Server) handleReplaceFile(w http.ResponseWriter, r *http.Request) {
	c, ok := s.run(w, r)
	if !ok {
		return
	}
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.dispatch(w, r, c, func() (core.State, error) { return c.Upload(name, data) })
}

// readUpload reads the multipart "file" field, bounded by the upload limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return "", nil, fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, maxSize)
		}
		return "", nil, badRequest("multipart form: %v", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, badRequest("no file in form field 'file'")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return header.Filename, data, nil
}

// handleGetRun returns the run view.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	c, ok := s.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newRunView(c, s.cfg.Upload.PreviewRows))
}

// handleDeleteRun abandons and forgets a run.
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteRun(chi.URLParam(r, "runID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type headerRequest struct {
	Row *int `json:"row"`
}

// handleConfirmHeader fixes the header row.
func (s *Server) handleConfirmHeader(w http.ResponseWriter, r *http.Request) {
	c, ok := s.run(w, r)
	if !ok {
		return
	}
	var req headerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Row == nil {
		s.respondError(w, r, badRequest("row is required"))
		return
	}
	s.dispatch(w, r, c, func() (core.State, error) { return c.ConfirmHeader(*req.Row) })
}

type mappingRequest struct {
	Field string  `json:"field"`
	Label *string `json:"label"`
}

// handleSetMapping binds one field. A null label marks the field as having
// no column.
func (s *Server) handleSetMapping(w http.ResponseWriter, r *http.Request) {
	c, ok := s.run(w, r)
	if !ok {
		return
	}
	var req mappingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Field == "" {
		s.respondError(w, r, badRequest("field is required"))
		return
	}
	s.dispatch(w, r, c, func() (core.State, error) {
		if req.Label == nil {
			return c.UnsetMapping(req.Field)
		}
		return c.SetMapping(req.Field, *req.Label)
	})
}

// handleConfirmMapping freezes the mapping. Pipelines that validate on
// confirm reconcile in the same request.
func (s *Server) handleConfirmMapping(w http.ResponseWriter, r *http.Request) {
	c, ok := s.run(w, r)
	if !ok {
		return
	}
	st, err := c.ConfirmMapping()
	if err == nil && st.Step() == core.StepValidation && c.Pipeline().ValidateOnConfirm {
		_, err = c.Validate(r.Context())
	}
	s.respond(w, r, c, err)
}

// handleValidate reconciles the rows with the catalog.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	c, ok := s.run(w, r)
	if !ok {
		return
	}
	s.dispatch(w, r, c, func() (core.State, error) { return c.Validate(r.Context()) })
}

type executeRequest struct {
	Context map[string]string `json:"context"`
	Wait    bool              `json:"wait"`
}

// handleExecute starts sending batches. The execution outlives the request;
// the response is 202 with the executing run unless wait is set, in which
// case it is the finished run.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	c, ok := s.run(w, r)
	if !ok {
		return
	}
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	x, err := c.Begin(r.Context(), req.Context)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if req.Wait {
		if _, err := x.Run(); err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newRunView(c, s.cfg.Upload.PreviewRows))
		return
	}

	logger := logging.FromContext(r.Context())
	go func() {
		if _, err := x.Run(); err != nil {
			logger.Warn("background execution aborted", "run_id", c.ID(), "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, newRunView(c, s.cfg.Upload.PreviewRows))
}

type backRequest struct {
	To core.Step `json:"to"`
}

// handleBack returns the run to an earlier step.
func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	c, ok := s.run(w, r)
	if !ok {
		return
	}
	var req backRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.dispatch(w, r, c, func() (core.State, error) { return c.Back(req.To) })
}

// handleReset discards the run's data.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	c, ok := s.run(w, r)
	if !ok {
		return
	}
	s.dispatch(w, r, c, c.Reset)
}

// run resolves the runID URL parameter, writing the error when it fails.
func (s *Server) run(w http.ResponseWriter, r *http.Request) (*core.Controller, bool) {
	c, err := s.service.Run(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err)
		return nil, false
	}
	return c, true
}

// dispatch runs an action and responds with the resulting run view.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, c *core.Controller, action func() (core.State, error)) {
	_, err := action()
	s.respond(w, r, c, err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, c *core.Controller, err error) {
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunView(c, s.cfg.Upload.PreviewRows))
}

// decodeJSON reads a JSON body into v. An empty body leaves v unchanged.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest("%v", err)
	}
	return nil
}
