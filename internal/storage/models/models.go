package models

import "time"

// Document describes an ingested file. Filename is the identity: re-uploading
// the same filename replaces the previous document.
type Document struct {
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	Checksum   string    `json:"checksum"`
	Pages      int       `json:"pages"`
	Chunks     int       `json:"chunks"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Report is a generated operations report. The JSON field names are the API
// wire format.
type Report struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	SourceFile      string    `json:"filename"`
	Summary         string    `json:"summary"`
	Metrics         []Metric  `json:"metrics"`
	Observations    []string  `json:"observations"`
	Recommendations []string  `json:"recommendations"`
	CreatedAt       time.Time `json:"date"`
}

// Metric is one key figure in a report. Trend is "up", "down", or "neutral".
type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Trend string `json:"trend"`
}
