package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied means the user or OS refused microphone or screen/tab capture.
	ErrPermissionDenied = fmt.Errorf("capture permission denied")
	// ErrAudioNotShared means a screen/tab share was granted without its audio.
	ErrAudioNotShared = fmt.Errorf("system audio not shared")
	// ErrPlayback means the playback engine could not start or resume a clip.
	ErrPlayback = fmt.Errorf("playback failed")

	ErrCaptureFailed   = fmt.Errorf("capture failed")
	ErrSessionActive   = fmt.Errorf("a capture session is already active")
	ErrNotRecording    = fmt.Errorf("not recording")
	ErrClipNotFound    = fmt.Errorf("clip not found")
	ErrInvalidClipName = fmt.Errorf("clip name cannot be empty")
	ErrInvalidGain     = fmt.Errorf("gain must be a non-negative number")
	ErrEngineClosed    = fmt.Errorf("engine closed")
)

// Op names the engine operation an [Error] came from.
type Op string

const (
	OpStartMic   Op = "start mic capture"
	OpStartMixed Op = "start mixed capture"
	OpStop       Op = "stop capture"
	OpPlay       Op = "toggle playback"
	OpRename     Op = "rename clip"
	OpDelete     Op = "delete clip"
	OpPersist    Op = "mark clip persisted"
	OpGain       Op = "set gain"
)

// Error is the classified error surfaced by every failing engine operation.
//
// Kind is one of the package sentinels; Err is the underlying platform error, if any.
// [errors.Is] matches both.
type Error struct {
	Op   Op
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil || errors.Is(e.Err, e.Kind) {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Op, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Kind returns the sentinel classification of err, or nil when err did not come from the engine.
func Kind(err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return nil
}

// classify maps a platform acquisition error onto a sentinel.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return ErrPermissionDenied
	case errors.Is(err, ErrAudioNotShared):
		return ErrAudioNotShared
	default:
		return ErrCaptureFailed
	}
}

func newError(op Op, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}
