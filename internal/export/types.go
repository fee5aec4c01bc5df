package export

// ExportRequest is the body of POST /api/export. An empty OutputDir uses
// the configured export directory.
type ExportRequest struct {
	OutputDir string `json:"output_dir"`
}

type ExportResponse struct {
	Status           string `json:"status"`
	OutputPath       string `json:"output_path"`
	LabelMapPath     string `json:"label_map_path"`
	RowCount         int    `json:"row_count"`
	SkippedUnlabeled int    `json:"skipped_unlabeled"`
	SkippedTrailing  int    `json:"skipped_trailing"`
}

// Row is one CSV record: a clip filename and its label name.
type Row struct {
	Clip  string
	Label string
}
