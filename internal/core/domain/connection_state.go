package domain

import "fmt"

// StateKind enumerates the connection lifecycle states.
type StateKind int

const (
	StateDisconnected StateKind = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateError
)

func (k StateKind) String() string {
	switch k {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ConnectionState is the current lifecycle state of a session. ServerURL is
// only set for StateConnected; Message and Cause only for StateError.
type ConnectionState struct {
	Kind      StateKind
	ServerURL string
	Message   string
	Cause     error
}

func Disconnected() ConnectionState  { return ConnectionState{Kind: StateDisconnected} }
func Connecting() ConnectionState    { return ConnectionState{Kind: StateConnecting} }
func Disconnecting() ConnectionState { return ConnectionState{Kind: StateDisconnecting} }

func Connected(serverURL string) ConnectionState {
	return ConnectionState{Kind: StateConnected, ServerURL: serverURL}
}

func Failed(message string, cause error) ConnectionState {
	return ConnectionState{Kind: StateError, Message: message, Cause: cause}
}

func (s ConnectionState) IsConnected() bool { return s.Kind == StateConnected }

// CanConnect reports whether a connect request is accepted from this state.
func (s ConnectionState) CanConnect() bool {
	return s.Kind == StateDisconnected || s.Kind == StateError
}

func (s ConnectionState) String() string {
	switch s.Kind {
	case StateConnected:
		return fmt.Sprintf("connected(%s)", s.ServerURL)
	case StateError:
		return fmt.Sprintf("error(%s)", s.Message)
	default:
		return s.Kind.String()
	}
}

// StateEvent is published for every transition, in the order transitions occur.
type StateEvent struct {
	From ConnectionState
	To   ConnectionState
}
