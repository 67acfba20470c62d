package wire

// RegisterRequest is the first message a subworker sends after connecting.
type RegisterRequest struct {
	Version       int    `json:"version"`
	SubworkerID   int    `json:"subworker_id"`
	SubworkerType string `json:"subworker_type"`
}

// RegisterResult answers a RegisterRequest. A failed registration carries a
// human-readable message; a successful one names the subworker's private
// directory, the only place its path results may live.
type RegisterResult struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	WorkDir string `json:"work_dir,omitempty"`
}

// Rejected is sent when a request arrives that the connection's state does
// not allow, such as a task report before registration.
type Rejected struct {
	Event string `json:"event"`
	Error string `json:"error"`
}
