package models

// TranscriptRequest is the body of POST /api/transcript. Either field may
// carry the video; URL accepts any supported YouTube link.
type TranscriptRequest struct {
	VideoID string `json:"videoId"`
	URL     string `json:"url"`
}

type BatchRequest struct {
	VideoIDs []string `json:"videoIds"`
}

type BatchJob struct {
	VideoID string `json:"videoId"`
	JobID   string `json:"jobId,omitempty"`
	Error   string `json:"error,omitempty"`
}

type BatchResponse struct {
	Jobs []BatchJob `json:"jobs"`
}

type JobStatus struct {
	JobID     string `json:"jobId"`
	VideoID   string `json:"videoId"`
	State     string `json:"state"`
	StartedAt string `json:"startedAt,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}
