package types

// Meta describes where response data came from and whether a write is
// confirmed upstream.
type Meta struct {
	Source  string `json:"source,omitempty"`
	Status  string `json:"status,omitempty"`
	QueueID string `json:"queue_id,omitempty"`
	Message string `json:"message,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type SuccessEnvelope struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
