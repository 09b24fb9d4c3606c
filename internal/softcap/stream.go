package softcap

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/desertthunder/compuse/internal/capture"
)

// Track is a software media track. Stopping the last live audio track of a stream closes its source.
type Track struct {
	kind    capture.TrackKind
	stopped atomic.Bool
	onStop  func()
}

func (t *Track) Kind() capture.TrackKind { return t.kind }

func (t *Track) Stop() {
	if t.stopped.Swap(true) {
		return
	}
	if t.onStop != nil {
		t.onStop()
	}
}

// Stopped reports whether Stop was called.
func (t *Track) Stopped() bool { return t.stopped.Load() }

// Stream is a [capture.Stream] carrying PCM from a [Source]. A stream without audio has a nil source.
type Stream struct {
	format Format
	audio  []*Track
	video  []*Track

	mu        sync.Mutex
	src       io.Reader
	closer    io.Closer
	closeOnce sync.Once
}

func newStream(src *Source, format Format, audio, video int) *Stream {
	s := &Stream{format: format}
	if src != nil {
		s.src = Convert(src, src.Format, format)
		s.closer = src
	}

	for range audio {
		s.audio = append(s.audio, &Track{kind: capture.AudioTrack, onStop: s.trackStopped})
	}
	for range video {
		s.video = append(s.video, &Track{kind: capture.VideoTrack})
	}
	return s
}

func (s *Stream) AudioTracks() []capture.Track { return asTracks(s.audio) }
func (s *Stream) VideoTracks() []capture.Track { return asTracks(s.video) }

// Format returns the PCM format read from the stream.
func (s *Stream) Format() Format { return s.format }

func (s *Stream) Stop() {
	for _, t := range s.audio {
		t.Stop()
	}
	for _, t := range s.video {
		t.Stop()
	}
	s.close()
}

// Read reads PCM from the stream. A stopped stream, or one without audio, reads as EOF.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	src := s.src
	s.mu.Unlock()

	if src == nil {
		return 0, io.EOF
	}
	return src.Read(p)
}

func (s *Stream) trackStopped() {
	for _, t := range s.audio {
		if !t.Stopped() {
			return
		}
	}
	s.close()
}

func (s *Stream) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.src = nil
		s.mu.Unlock()
		if s.closer != nil {
			s.closer.Close()
		}
	})
}

func asTracks(ts []*Track) []capture.Track {
	out := make([]capture.Track, len(ts))
	for i, t := range ts {
		out[i] = t
	}
	return out
}

var _ capture.Stream = (*Stream)(nil)
