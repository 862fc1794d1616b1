package interview

import "errors"

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionClosed       = errors.New("session closed")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrPermissionDenied    = errors.New("media permission denied")
	ErrDeviceUnavailable   = errors.New("media device unavailable")
	ErrDetectorUnavailable = errors.New("face landmark detector unavailable")
	ErrNoQuestions         = errors.New("no questions available")
	ErrAnswerPending       = errors.New("answer analysis still pending")
	ErrUnknownAction       = errors.New("unknown action")
)
