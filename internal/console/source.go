// Package console multiplexes capsule and hypervisor output onto a single
// terminal and relays locally typed input to one capsule.
//
// Every worker goroutine drains the host's byte sources into a shared Store.
// Worker 0 is the leader: it registers the console service, relays input and
// renders the Store to the terminal. Rendering is drain-on-read, so each byte
// is painted exactly once.
package console

import "context"

// NoData is the sentinel returned by a poll when nothing is queued. It is -1
// as a signed byte and never occurs in UTF-8 text.
const NoData byte = 0xFF

// TaggedChar is one byte of capsule output tagged with its origin.
type TaggedChar struct {
	Capsule int
	Char    byte
}

// Sources are the non-blocking output polls. A poll returning NoData means
// nothing is queued; any error is fatal.
type Sources interface {
	PollCapsule() (TaggedChar, error)
	PollHypervisor() (byte, error)
}

// Input reads local keystrokes and delivers them to capsules.
type Input interface {
	// ReadLocal blocks until a locally typed byte is available.
	ReadLocal(ctx context.Context) (byte, error)
	// SendToCapsule is best-effort delivery of one byte.
	SendToCapsule(c byte, capsule int) error
}

// Registrar performs the one-time console service registration.
type Registrar interface {
	RegisterConsole(ctx context.Context) error
}

// Host is the full byte-source adapter the console service runs against.
type Host interface {
	Sources
	Input
	Registrar
}

// Recorder receives counters from the console loop.
type Recorder interface {
	ObserveCapsuleBytes(capsule, n int)
	ObserveHypervisorBytes(n int)
	ObserveRender(n int)
	ObserveRelay()
}

type nopRecorder struct{}

func (nopRecorder) ObserveCapsuleBytes(int, int) {}
func (nopRecorder) ObserveHypervisorBytes(int)   {}
func (nopRecorder) ObserveRender(int)            {}
func (nopRecorder) ObserveRelay()                {}
