package summarizer

// User-visible result strings.
const (
	ErrorPrefix   = "Error: "
	GenericFailed = "An error occurred."
)

// Request is the payload sent to the external summarization endpoint.
type Request struct {
	URL string `json:"url"`
}

// Reply is the decoded summarization endpoint body. Exactly one of Summary
// or Error is expected.
type Reply struct {
	Status  string `json:"status,omitempty"`
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
	VideoID string `json:"video_id,omitempty"`
}

// State is the widget state of one view.
type State struct {
	Input   string `json:"input"`
	Result  string `json:"result"`
	Loading bool   `json:"loading"`
}

// SubmitRequest is the inbound payload of the summarizer form.
type SubmitRequest struct {
	URL string `json:"url"`
}
