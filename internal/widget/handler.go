package widget

import (
	"context"
	"fmt"

	"github.com/rbright/chatdock/internal/ipc"
)

var _ ipc.Handler = (*Widget)(nil)

// Handle serves one remote control request.
func (w *Widget) Handle(_ context.Context, req ipc.Request) ipc.Response {
	var (
		message string
		err     error
	)

	switch req.Command {
	case ipc.CommandStatus:
	case ipc.CommandSend:
		if !w.Send(req.Text) {
			err = fmt.Errorf("nothing to send")
			break
		}
		message = "sent"
	case ipc.CommandRecord:
		err = w.ToggleRecording()
		message = string(w.RecordingState())
	case ipc.CommandRecordStart:
		err = w.StartRecording()
		message = string(w.RecordingState())
	case ipc.CommandRecordStop:
		err = w.StopRecording()
		message = string(w.RecordingState())
	case ipc.CommandMinimize:
		message = "restored"
		if w.ToggleMinimize() {
			message = "minimized"
		}
	default:
		err = fmt.Errorf("unknown command %q", req.Command)
	}

	resp := w.status()
	if err != nil {
		resp.OK = false
		resp.Error = err.Error()
		return resp
	}
	resp.Message = message
	return resp
}

func (w *Widget) status() ipc.Response {
	return ipc.Response{
		OK:        true,
		State:     string(w.RecordingState()),
		Messages:  len(w.Transcript()),
		Minimized: w.Minimized(),
		Loading:   w.Loading(),
	}
}
