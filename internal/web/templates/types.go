// Package templates renders the dashboard's HTML as templ components.
//
// Components live in .templ files; run `templ generate` after editing them.
package templates

// PreviewData is the first rows of a finished run, already stringified.
type PreviewData struct {
	RunID        string     `json:"run_id"`
	PatientCount int        `json:"patient_count"`
	Columns      []string   `json:"columns"`
	Rows         [][]string `json:"rows"`
	TotalRows    int        `json:"total_rows"`
	Truncated    bool       `json:"truncated"`
}

// AlertData is a user-facing error.
type AlertData struct {
	Message string
	Action  string
	Code    string
}

// PageData drives the full upload page.
type PageData struct {
	MaxFileSize int64
	Preview     *PreviewData
	Alert       *AlertData
}
