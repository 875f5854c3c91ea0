// Package tracker defines the eye-tracker bridge the experiment talks to:
// a trusted millisecond clock, a raw gaze sampler, a button queue, an
// event-code sink and a message log.
//
// FileTracker is the software stand-in used when no hardware is attached.
// It stamps every message with its clock and writes it to a session log.
package tracker

import (
	"context"

	"github.com/nede-neuro/go-nede/pkg/geom"
)

// Code is an event code sent out of the tracker's parallel port.
type Code int

// Event codes.
const (
	CodeNone           Code = 0
	CodeStartRecording Code = 200
	CodeEndRecording   Code = 201
	CodeStartTrial     Code = 203
	CodeEndTrial       Code = 206
	CodeSync           Code = 211
)

// Gamepad buttons.
const (
	ButtonNone   = 0
	ButtonTarget = 3
	ButtonBrake  = 4
)

// Tracker is the contract every eye-tracker bridge implements.
type Tracker interface {
	// Start opens the session. An empty filename means do not record.
	Start(ctx context.Context, filename string) error

	// Stop ends the session and closes the log.
	Stop() error

	// Now returns the tracker clock in milliseconds.
	Now() int64

	// Message logs text stamped with the tracker clock.
	Message(text string) error

	// SendCode writes an event code to the port and logs it.
	SendCode(code Code) error

	// Gaze returns the latest raw gaze sample, if any.
	Gaze() (geom.Vec2, bool)

	// Button returns the next queued button press, or ButtonNone.
	Button() int

	// Flush discards queued button presses and saccade events.
	Flush()
}
