package internal

import (
	"net/http"
	"time"

	"toolledger-api/pkg/exporter"
)

// exportRecords streams the full borrow history as an xlsx workbook.
// An optional ?layout= points at a YAML column layout on disk.
func (s *Server) exportRecords(w http.ResponseWriter, r *http.Request) {
	opts := exporter.Options{
		LayoutPath: r.URL.Query().Get("layout"),
	}

	filename := "borrow-records-" + time.Now().Format("2006-01-02") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	// The workbook is assembled in memory and written once, so a failure
	// here still leaves the response writer clean for the error.
	if _, err := exporter.ExportRecords(r.Context(), s.Pool, w, opts); err != nil {
		http.Error(w, "export failed: "+err.Error(), http.StatusInternalServerError)
	}
}
