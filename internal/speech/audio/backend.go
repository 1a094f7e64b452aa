// Package audio plays synthesized clips. A Backend plays one clip at a time
// and can be polled and stopped by the playback worker.
package audio

import "errors"

var (
	ErrNotInitialized = errors.New("audio: backend not initialized")
	ErrNothingLoaded  = errors.New("audio: no clip loaded")
)

// Backend is the audio output device used by the voice engine.
type Backend interface {
	// Init prepares the device. It is called once before any Load.
	Init() error
	// Load decodes the clip at path and makes it the current clip.
	Load(path string) error
	// Play starts the current clip and returns without waiting for it.
	Play() error
	// IsBusy reports whether a clip is still playing.
	IsBusy() bool
	// Stop halts playback immediately. Stopping an idle backend is a no-op.
	Stop() error
	// Close releases the device.
	Close() error
}
