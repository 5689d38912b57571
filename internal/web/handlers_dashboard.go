package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/woundcare/internal/core"
	"github.com/JonMunkholm/woundcare/internal/logging"
	"github.com/JonMunkholm/woundcare/internal/web/templates"
	"github.com/JonMunkholm/woundcare/internal/workbook"
)

// Multipart field names for the three uploads and their column choices.
const (
	fieldCensus   = "census"
	fieldRoster   = "roster"
	fieldSchedule = "schedule"

	// multipartMemory is how much of a form ParseMultipartForm keeps in memory;
	// the rest spills to temporary files.
	multipartMemory = 32 << 20
)

// ColumnsResponse lists the columns each upload offers after resolution.
type ColumnsResponse struct {
	Census   []string `json:"census"`
	Roster   []string `json:"roster"`
	Schedule []string `json:"schedule"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string                `json:"status"`
	Runs   core.RunLimiterStatus `json:"runs"`
}

// parseUploads reads the three workbooks and the optional column selection.
func (s *Server) parseUploads(w http.ResponseWriter, r *http.Request) (core.Inputs, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, 3*maxSize+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			return core.Inputs{}, &FileError{Field: "form", Err: errFileTooBig}
		}
		return core.Inputs{}, &FileError{Field: "form", Err: fmt.Errorf("%w: %v", errNoFile, err)}
	}

	var (
		in  core.Inputs
		err error
	)
	if in.Census, err = s.decodeField(r, fieldCensus); err != nil {
		return core.Inputs{}, err
	}
	if in.Roster, err = s.decodeField(r, fieldRoster); err != nil {
		return core.Inputs{}, err
	}
	if in.Schedule, err = s.decodeField(r, fieldSchedule); err != nil {
		return core.Inputs{}, err
	}

	in.Selection = core.Selection{
		Schedule: selectedColumns(r, fieldSchedule),
		Census:   selectedColumns(r, fieldCensus),
		Roster:   selectedColumns(r, fieldRoster),
	}
	return in, nil
}

// decodeField decodes the workbook uploaded under field.
func (s *Server) decodeField(r *http.Request, field string) (*core.Table, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, &FileError{Field: field, Err: errNoFile}
	}
	defer file.Close()

	if header.Size > s.cfg.Upload.MaxFileSize {
		return nil, &FileError{Field: field, Err: errFileTooBig}
	}

	table, err := workbook.Decode(r.Context(), file)
	if err != nil {
		return nil, &FileError{Field: field, Err: err}
	}

	logging.FromContext(r.Context()).Debug("workbook decoded",
		"field", field,
		"file", header.Filename,
		"rows", table.Len(),
		"columns", len(table.Columns),
	)
	return table, nil
}

// selectedColumns returns the repeated <field>_cols values, or nil when the
// form does not carry the key at all, which selects every column.
func selectedColumns(r *http.Request, field string) []string {
	values, ok := r.MultipartForm.Value[field+"_cols"]
	if !ok {
		return nil
	}
	cols := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			cols = append(cols, v)
		}
	}
	return cols
}

// previewOf stringifies the first limit rows of a result.
func previewOf(res *core.Result, limit int) templates.PreviewData {
	t := res.Table
	n := min(t.Len(), limit)

	rows := make([][]string, n)
	for i := range rows {
		row := make([]string, len(t.Columns))
		for j, v := range t.Rows[i] {
			row[j] = v.String()
		}
		rows[i] = row
	}

	return templates.PreviewData{
		RunID:        res.RunID,
		PatientCount: res.PatientCount,
		Columns:      t.Columns,
		Rows:         rows,
		TotalRows:    t.Len(),
		Truncated:    t.Len() > n,
	}
}

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, templates.PageData{}, http.StatusOK)
}

// handlePreviewPage runs the pipeline from the plain HTML form and renders
// the page with the preview below it.
func (s *Server) handlePreviewPage(w http.ResponseWriter, r *http.Request) {
	res, err := s.run(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	preview := previewOf(res, s.cfg.Export.PreviewRows)
	s.renderPage(w, r, templates.PageData{Preview: &preview}, http.StatusOK)
}

// handleColumns returns the resolved column names of the three uploads.
func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	in, err := s.parseUploads(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	cols, err := s.service.Columns(in.Census, in.Roster, in.Schedule)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, r, ColumnsResponse{
		Census:   cols[core.SourceCensus],
		Roster:   cols[core.SourceRoster],
		Schedule: cols[core.SourceSchedule],
	})
}

// handlePreview runs the pipeline and returns the first rows of the result.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	res, err := s.run(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	preview := previewOf(res, s.cfg.Export.PreviewRows)
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.PreviewTable(preview).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render preview", "error", err)
		}
		return
	}
	writeJSON(w, r, preview)
}

// handleExport runs the pipeline and sends the result as an .xlsx download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.run(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	// Encode fully before writing so a failure can still produce an error response.
	var buf bytes.Buffer
	if err := workbook.Encode(&buf, res.Table, s.cfg.Export.SheetName); err != nil {
		s.respondError(w, r, fmt.Errorf("encode dashboard: %w", err))
		return
	}

	w.Header().Set("Content-Type", workbook.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, s.cfg.Export.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Run-ID", res.RunID)
	w.Header().Set("X-Patient-Count", strconv.Itoa(res.PatientCount))
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("export write failed", "run_id", res.RunID, "error", err)
	}
}

// handleHealth reports liveness and run concurrency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, HealthResponse{Status: "ok", Runs: s.service.LimiterStatus()})
}

// run parses the uploads and executes one pipeline run.
func (s *Server) run(w http.ResponseWriter, r *http.Request) (*core.Result, error) {
	in, err := s.parseUploads(w, r)
	if err != nil {
		return nil, err
	}
	return s.service.Run(r.Context(), in)
}

// renderPage writes the full HTML page.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, d templates.PageData, status int) {
	d.MaxFileSize = s.cfg.Upload.MaxFileSize
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.Page(d).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "error", err)
	}
}
