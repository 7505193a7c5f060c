package ports

import (
	"context"
	"net/http"
)

type MessageKind int

const (
	TextMessage MessageKind = iota
	BinaryMessage
)

// TransportHandler receives inbound traffic for a single transport. OnClose is
// only called for closes the client did not initiate.
type TransportHandler interface {
	OnMessage(kind MessageKind, data []byte)
	OnClose(err error)
}

// Transport is an established connection to the host.
type Transport interface {
	Send(ctx context.Context, kind MessageKind, data []byte) error
	Close() error
}

// Dialer performs the transport handshake. Implementations must honour ctx
// cancellation.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header, handler TransportHandler) (Transport, error)
}
