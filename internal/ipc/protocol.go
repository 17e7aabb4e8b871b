// Package ipc is the unix-socket control channel of a running widget.
package ipc

// Request is one control command sent to the running widget.
type Request struct {
	Command string `json:"command"`
	Text    string `json:"text,omitempty"`
}

// Response reports the outcome of a Request and a snapshot of widget state.
type Response struct {
	OK        bool   `json:"ok"`
	State     string `json:"state,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Messages  int    `json:"messages,omitempty"`
	Minimized bool   `json:"minimized,omitempty"`
	Loading   bool   `json:"loading,omitempty"`
}

// Control commands understood by the widget.
const (
	CommandStatus      = "status"
	CommandSend        = "send"
	CommandRecord      = "record"
	CommandRecordStart = "record-start"
	CommandRecordStop  = "record-stop"
	CommandMinimize    = "minimize"
)
