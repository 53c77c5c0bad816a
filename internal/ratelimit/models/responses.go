package models

// ExceededResponse is written with 429 when a policy rejects the request.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// BlockedResponse is written with 403 while an IP is blocked.
type BlockedResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}
