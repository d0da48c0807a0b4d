package core

// Frame is a raw encoded protocol message.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues f without blocking. A non-nil error means the frame
	// was not accepted and the connection should be considered broken.
	TrySend(Frame) error
	Close()
}
