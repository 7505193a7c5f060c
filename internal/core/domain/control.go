package domain

type ControlType string

const (
	ControlConfigOK    ControlType = "config_ok"
	ControlConfigError ControlType = "config_error"
	ControlError       ControlType = "error"
	ControlPong        ControlType = "pong"
)

// ControlMessage is a parsed text message from the host.
type ControlMessage struct {
	Type    ControlType
	Message string
}
