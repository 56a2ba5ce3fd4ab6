package livy

import "encoding/json"

// Session states reported by Livy
const (
	StateNotStarted   = "not_started"
	StateStarting     = "starting"
	StateIdle         = "idle"
	StateBusy         = "busy"
	StateShuttingDown = "shutting_down"
	StateError        = "error"
	StateDead         = "dead"
	StateKilled       = "killed"
	StateSuccess      = "success"
	StateRecovering   = "recovering"
)

// Statement states reported by Livy
const (
	StatementWaiting    = "waiting"
	StatementRunning    = "running"
	StatementAvailable  = "available"
	StatementStateError = "error"
	StatementCancelling = "cancelling"
	StatementCancelled  = "cancelled"
)

// Statement output statuses
const (
	OutputOK    = "ok"
	OutputError = "error"
)

// IsFinalSessionState reports whether a session in state can no longer become idle.
func IsFinalSessionState(state string) bool {
	switch state {
	case StateError, StateDead, StateKilled, StateSuccess:
		return true
	}
	return false
}

// SessionInfo is the body of GET /sessions/{id} and POST /sessions.
type SessionInfo struct {
	ID        int               `json:"id"`
	AppID     string            `json:"appId,omitempty"`
	Owner     string            `json:"owner,omitempty"`
	ProxyUser string            `json:"proxyUser,omitempty"`
	Kind      string            `json:"kind,omitempty"`
	Log       []string          `json:"log,omitempty"`
	State     string            `json:"state"`
	AppInfo   map[string]string `json:"appInfo,omitempty"`
}

// SessionList is the body of GET /sessions.
type SessionList struct {
	From     int           `json:"from"`
	Total    int           `json:"total"`
	Sessions []SessionInfo `json:"sessions"`
}

// StatementRequest is the body of POST /sessions/{id}/statements.
type StatementRequest struct {
	Code string `json:"code"`
	Kind string `json:"kind,omitempty"`
}

// Statement is the body of the statement endpoints.
type Statement struct {
	ID       int              `json:"id"`
	Code     string           `json:"code,omitempty"`
	State    string           `json:"state"`
	Output   *StatementOutput `json:"output,omitempty"`
	Progress float64          `json:"progress,omitempty"`
}

// StatementOutput is the result of an available statement.
type StatementOutput struct {
	Status         string                     `json:"status"`
	ExecutionCount int                        `json:"execution_count"`
	Data           map[string]json.RawMessage `json:"data,omitempty"`
	EName          string                     `json:"ename,omitempty"`
	EValue         string                     `json:"evalue,omitempty"`
	Traceback      []string                   `json:"traceback,omitempty"`
}

// Text returns the text/plain representation of a successful output.
func (o *StatementOutput) Text() string {
	raw, ok := o.Data["text/plain"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}

// SessionLog is the body of GET /sessions/{id}/log.
type SessionLog struct {
	ID    int      `json:"id"`
	From  int      `json:"from"`
	Total int      `json:"total"`
	Log   []string `json:"log"`
}
