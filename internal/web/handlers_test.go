package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JonMunkholm/woundcare/internal/config"
	"github.com/JonMunkholm/woundcare/internal/core"
	"github.com/JonMunkholm/woundcare/internal/web/templates"
	"github.com/JonMunkholm/woundcare/internal/workbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 30 * time.Second},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20, MaxConcurrent: 2, MaxWaitTime: time.Second},
		Export: config.ExportConfig{FileName: "WoundCare_Dashboard.xlsx", SheetName: "Sheet1", PreviewRows: 1},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s := NewServer(core.NewService(cfg), cfg)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func xlsxOf(t *testing.T, columns []string, rows ...[]string) []byte {
	t.Helper()
	tbl := core.NewTable(columns...)
	for _, r := range rows {
		values := make([]core.Value, len(r))
		for i, s := range r {
			values[i] = core.Text(s)
		}
		tbl.AppendRow(values...)
	}
	data, err := workbook.EncodeBytes(tbl, "Sheet1")
	require.NoError(t, err)
	return data
}

type upload struct {
	files  map[string][]byte
	values map[string][]string
}

func defaultUpload(t *testing.T) upload {
	return upload{
		files: map[string][]byte{
			"census": xlsxOf(t, []string{"MRN", "PDGM Grouping", "Payer"},
				[]string{"A", "WOUND", "Medicare"},
				[]string{"B", "CARDIAC", "Medicaid"},
			),
			"roster": xlsxOf(t, []string{"Chart", "Patient Flags", "Clinician"},
				[]string{"C", "WOUND CARE", "Kim"},
			),
			"schedule": xlsxOf(t, []string{"Medical Record", "Target Date"},
				[]string{"C", "2024-03-02"},
				[]string{"B", "2024-03-01"},
				[]string{"A", "2024-03-05"},
			),
		},
		values: map[string][]string{},
	}
}

func (u upload) request(t *testing.T, path string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, data := range u.files {
		fw, err := mw.CreateFormFile(field, field+".xlsx")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for field, values := range u.values {
		for _, v := range values {
			require.NoError(t, mw.WriteField(field, v))
		}
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandlePreview_JSON(t *testing.T) {
	s := newTestServer(t, testConfig())
	u := defaultUpload(t)
	u.values["schedule_cols"] = []string{"MRN", "Target Date"}
	u.values["census_cols"] = []string{"Payer"}
	u.values["roster_cols"] = []string{"Clinician"}

	rec := serve(s, u.request(t, "/api/preview"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got templates.PreviewData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.RunID)
	assert.Equal(t, 2, got.PatientCount)
	assert.Equal(t, []string{"MRN", "Target Date", "Payer", "Clinician"}, got.Columns)
	assert.Equal(t, [][]string{{"A", "2024-03-05", "Medicare", ""}}, got.Rows)
	assert.Equal(t, 2, got.TotalRows)
	assert.True(t, got.Truncated)
}

func TestHandlePreview_HTMX(t *testing.T) {
	s := newTestServer(t, testConfig())
	req := defaultUpload(t).request(t, "/api/preview")
	req.Header.Set("HX-Request", "true")

	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Wound care patients found: <strong>2</strong>")
}

func TestHandleExport(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, defaultUpload(t).request(t, "/api/export"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, workbook.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="WoundCare_Dashboard.xlsx"`)
	assert.Equal(t, "2", rec.Header().Get("X-Patient-Count"))
	assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))

	out, err := workbook.DecodeBytes(context.Background(), rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"MRN", "Target Date", "PDGM Grouping", "Payer", "Patient Flags", "Clinician"}, out.Columns)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, "A", out.Cell(0, "MRN").String())
	assert.Equal(t, "C", out.Cell(1, "MRN").String())
}

func TestHandleColumns(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, defaultUpload(t).request(t, "/api/columns"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got ColumnsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"MRN", "Patient Flags", "Clinician"}, got.Roster)
	assert.Equal(t, []string{"MRN", "Target Date"}, got.Schedule)
}

func TestHandlers_Errors(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(t *testing.T, u *upload)
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{
			name:       "missing file",
			mutate:     func(t *testing.T, u *upload) { delete(u.files, "roster") },
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE004",
			wantField:  "roster",
		},
		{
			name:       "not a workbook",
			mutate:     func(t *testing.T, u *upload) { u.files["census"] = []byte("MRN,PDGM Grouping\nA,WOUND\n") },
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE002",
			wantField:  "census",
		},
		{
			name: "no identifier column",
			mutate: func(t *testing.T, u *upload) {
				u.files["schedule"] = xlsxOf(t, []string{"Patient", "Target Date"}, []string{"A", "2024-01-01"})
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "VAL005",
		},
		{
			name: "no PDGM Grouping",
			mutate: func(t *testing.T, u *upload) {
				u.files["census"] = xlsxOf(t, []string{"MRN", "Payer"}, []string{"A", "Medicare"})
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "VAL004",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig())
			u := defaultUpload(t)
			tt.mutate(t, &u)

			rec := serve(s, u.request(t, "/api/export"))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			var got ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantField, got.Field)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestHandleExport_FileTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 64
	s := newTestServer(t, cfg)

	rec := serve(s, defaultUpload(t).request(t, "/api/export"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var got ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "FILE001", got.Code)
}

func TestPreviewPage_RendersAlertOnError(t *testing.T) {
	s := newTestServer(t, testConfig())
	u := defaultUpload(t)
	delete(u.files, "census")

	rec := serve(s, u.request(t, "/preview"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "<!doctype html>")
	assert.Contains(t, rec.Body.String(), "FILE004")
}

func TestIndexAndHealth(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="schedule"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"), "CSP disabled in test config")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Runs.MaxConcurrent)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	cfg.Security.EnableCSP = true
	s := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var got ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "RATE001", got.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(core.ErrTooManyRuns))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusBadRequest, statusFor(&FileError{Field: "census", Err: workbook.ErrEmptyWorkbook}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

func TestExport_BrowserErrorRendersPage(t *testing.T) {
	s := newTestServer(t, testConfig())
	u := defaultUpload(t)
	delete(u.files, "schedule")

	req := u.request(t, "/api/export")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	rec := serve(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "<!doctype html>")
}

func TestRespondError_MapsThroughUserError(t *testing.T) {
	s := newTestServer(t, testConfig())

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{"unmapped", errors.New("boom"), http.StatusInternalServerError, "ERR000", ""},
		{"file field", &FileError{Field: "roster", Err: errNoFile}, http.StatusBadRequest, "FILE004", "roster"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/preview", nil)
			rec := httptest.NewRecorder()
			s.respondError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantField, resp.Field)
			assert.Equal(t, resp.Message, resp.Error)
			assert.NotContains(t, resp.Error, "boom")
		})
	}
}
