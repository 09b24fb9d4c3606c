package capture

import "context"

// TrackKind tells audio tracks from video tracks.
type TrackKind string

const (
	AudioTrack TrackKind = "audio"
	VideoTrack TrackKind = "video"
)

// Track is a single media track inside a [Stream].
type Track interface {
	Kind() TrackKind
	Stop() // Stop releases the underlying device or share; repeated calls are no-ops
}

// Stream is an acquired media stream. Stop stops every track it holds.
type Stream interface {
	AudioTracks() []Track
	VideoTracks() []Track
	Stop()
}

// Source identifies one input of the mixing graph.
type Source int

const (
	MicSource Source = iota
	SystemSource
)

func (s Source) String() string {
	switch s {
	case MicSource:
		return "mic"
	case SystemSource:
		return "system"
	default:
		return "unknown"
	}
}

// Gains holds the gain applied to each mixer input. 1.0 is unity.
type Gains struct {
	Mic    float64
	System float64
}

// UnityGains passes both inputs through unchanged.
var UnityGains = Gains{Mic: 1, System: 1}

// Mixer routes the microphone and system streams through independent gain stages into one output.
type Mixer interface {
	Output() Stream
	SetGain(src Source, gain float64) error
	Close() error
}

// Recorder turns a stream into encoded chunks.
//
// Start delivers chunks to sink as they are produced, possibly from another goroutine.
// Stop must deliver any buffered data to sink before returning.
type Recorder interface {
	Start(sink func(chunk []byte)) error
	Stop() error
	MimeType() string
}

// Capabilities is the platform surface the engine records through.
//
// Acquire calls may block for as long as the user takes to answer a permission prompt and should honor ctx.
// Denials must wrap [ErrPermissionDenied].
type Capabilities interface {
	AcquireMic(ctx context.Context) (Stream, error)
	AcquireSystemAudio(ctx context.Context) (Stream, error)
	CreateMixer(mic, system Stream, gains Gains) (Mixer, error)
	CreateRecorder(stream Stream) (Recorder, error)
}

// Blobs holds recorded audio behind transient, process-local URIs.
type Blobs interface {
	Create(data []byte, mimeType string) string
	Open(uri string) ([]byte, string, error)
	Release(uri string)
}

// Player plays one clip.
//
// Play must not invoke onEnded synchronously; it is called once playback reaches the end.
type Player interface {
	Play(onEnded func()) error
	Pause()
	Rewind()
	Close() error
}

// Players opens a [Player] for a clip's source URI.
type Players interface {
	Open(uri string) (Player, error)
}
