package player

import (
	"errors"
	"fmt"
)

// ErrSinkFull is returned by an AudioSink whose buffer is temporarily
// full; the producer backs off and retries the write.
var ErrSinkFull = errors.New("the audio sink buffer is full")

// ErrNoVideoStream is the stream-fatal open error for sources that carry
// nothing the engine could display.
var ErrNoVideoStream = errors.New("no decodable video stream in the source")

// ErrAlreadyPlaying is returned by Start while the worker is running.
var ErrAlreadyPlaying = errors.New("the player is already playing")

// ErrNoSource is returned by operations that require an opened source.
var ErrNoSource = errors.New("no source is opened")

// ErrSourceOpen is the stream-fatal wrapper for demuxer/decoder
// initialization failures surfaced by OpenSource.
type ErrSourceOpen struct {
	Err error
}

func (e ErrSourceOpen) Error() string {
	return fmt.Sprintf("unable to open the source: %v", e.Err)
}

func (e ErrSourceOpen) Unwrap() error {
	return e.Err
}
