package tui

import "github.com/soaringjerry/Vox/internal/onboarding"

// StartedMsg reports the outcome of acquiring the microphone.
type StartedMsg struct {
	Err error
}

// NavigatedMsg is sent after a next, previous or pause transition finished.
type NavigatedMsg struct {
	State onboarding.State
	Err   error
}

// StateMsg carries a controller state change, see StateRelay.
type StateMsg struct {
	State onboarding.State
}

// UploadFailedMsg is sent when a segment was dropped after its last retry.
type UploadFailedMsg struct {
	QuestionID int
	Err        error
}

// CompleteMsg is sent when the completion delay has elapsed.
type CompleteMsg struct{}

// TickMsg drives the waveform and the speaking indicator.
type TickMsg struct{}

// ClearToastMsg clears a transient notification.
type ClearToastMsg struct {
	seq int
}

type closedMsg struct{}
