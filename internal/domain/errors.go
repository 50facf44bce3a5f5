package domain

import "errors"

// Errores tipados del core. El adapter de Discord los matchea con errors.Is
// y elige el texto que ve el usuario.
var (
	ErrNotFound = errors.New("not found")

	ErrInvalidValue = errors.New("invalid value")
	ErrLimitReached = errors.New("limit reached")

	ErrEmptyQueue     = errors.New("queue is empty")
	ErrDuplicateTrack = errors.New("track already queued")
	ErrNoResults      = errors.New("no results")

	ErrNotInVoice       = errors.New("member not in voice")
	ErrBotNotInVoice    = errors.New("bot not in voice")
	ErrIncorrectChannel = errors.New("incorrect channel")
	ErrNoSession        = errors.New("no active session")
	ErrSessionClosed    = errors.New("session closed")
	ErrNotPlaying       = errors.New("nothing playing")
	ErrAlreadyPaused    = errors.New("already paused")
	ErrNotPaused        = errors.New("not paused")
	ErrInvalidVolume    = errors.New("volume out of range")
	ErrNotSeekable      = errors.New("track is not seekable")
	ErrIndexOutOfRange  = errors.New("queue index out of range")
	ErrInvalidMember    = errors.New("invalid member")

	// errores de reproducción que reporta el nodo
	ErrTrackFailed = errors.New("track failed")
	ErrTrackStuck  = errors.New("track stuck")
)
