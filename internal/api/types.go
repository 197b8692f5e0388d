package api

// ConvertResponse is the descriptor returned by POST /convert when the
// caller did not ask for the bytes inline.
type ConvertResponse struct {
	Status      string `json:"status"`
	OutputPath  string `json:"output_path"`
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	SizeBytes   int64  `json:"size_bytes"`
}

// ServiceResponse is returned by GET /.
type ServiceResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// DownloadResult describes bytes written by an inline conversion or download.
type DownloadResult struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}
