// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/compuse/internal/capture"
)

// MockTrack is a test double for [capture.Track] that counts Stop calls
type MockTrack struct {
	kind  capture.TrackKind
	mu    sync.Mutex
	stops int
}

func NewMockTrack(kind capture.TrackKind) *MockTrack {
	return &MockTrack{kind: kind}
}

func (t *MockTrack) Kind() capture.TrackKind { return t.kind }

func (t *MockTrack) Stop() {
	t.mu.Lock()
	t.stops++
	t.mu.Unlock()
}

func (t *MockTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops > 0
}

// MockStream is a test double for [capture.Stream]
type MockStream struct {
	Audio []*MockTrack
	Video []*MockTrack
}

// NewMockStream creates a stream holding the given number of audio and video tracks
func NewMockStream(audio, video int) *MockStream {
	s := &MockStream{}
	for range audio {
		s.Audio = append(s.Audio, NewMockTrack(capture.AudioTrack))
	}
	for range video {
		s.Video = append(s.Video, NewMockTrack(capture.VideoTrack))
	}
	return s
}

func (s *MockStream) AudioTracks() []capture.Track { return tracks(s.Audio) }
func (s *MockStream) VideoTracks() []capture.Track { return tracks(s.Video) }

func (s *MockStream) Stop() {
	for _, t := range s.Audio {
		t.Stop()
	}
	for _, t := range s.Video {
		t.Stop()
	}
}

// Stopped reports whether every track of the stream was stopped
func (s *MockStream) Stopped() bool {
	for _, t := range append(s.Audio, s.Video...) {
		if !t.Stopped() {
			return false
		}
	}
	return true
}

func tracks(ts []*MockTrack) []capture.Track {
	out := make([]capture.Track, len(ts))
	for i, t := range ts {
		out[i] = t
	}
	return out
}

// MockMixer is a test double for [capture.Mixer]
type MockMixer struct {
	Out    *MockStream
	Gains  capture.Gains
	Closed bool
}

func (m *MockMixer) Output() capture.Stream { return m.Out }

func (m *MockMixer) SetGain(src capture.Source, gain float64) error {
	switch src {
	case capture.MicSource:
		m.Gains.Mic = gain
	case capture.SystemSource:
		m.Gains.System = gain
	}
	return nil
}

func (m *MockMixer) Close() error {
	m.Closed = true
	return nil
}

// MockRecorder is a test double for [capture.Recorder] that emits Chunks on Stop
type MockRecorder struct {
	Chunks   [][]byte
	StartErr error
	StopErr  error
	Started  bool
	sink     func([]byte)
}

func (r *MockRecorder) Start(sink func([]byte)) error {
	if r.StartErr != nil {
		return r.StartErr
	}
	r.Started = true
	r.sink = sink
	return nil
}

func (r *MockRecorder) Stop() error {
	if r.sink != nil {
		for _, c := range r.Chunks {
			r.sink(c)
		}
		r.sink = nil
	}
	return r.StopErr
}

func (r *MockRecorder) MimeType() string { return "audio/wav" }

// MockCapabilities is a test double for [capture.Capabilities].
//
// Each Acquire call hands out a fresh stream built from the configured track counts unless an error is set.
type MockCapabilities struct {
	MicErr      error
	SystemErr   error
	MixerErr    error
	RecorderErr error

	SystemAudioTracks int
	SystemVideoTracks int
	Chunks            [][]byte

	mu       sync.Mutex
	Mics     []*MockStream
	Systems  []*MockStream
	Mixers   []*MockMixer
	Recorder *MockRecorder
}

// NewMockCapabilities returns capabilities whose system share carries one audio and one video track
func NewMockCapabilities() *MockCapabilities {
	return &MockCapabilities{SystemAudioTracks: 1, SystemVideoTracks: 1}
}

func (c *MockCapabilities) AcquireMic(ctx context.Context) (capture.Stream, error) {
	if c.MicErr != nil {
		return nil, c.MicErr
	}
	s := NewMockStream(1, 0)
	c.mu.Lock()
	c.Mics = append(c.Mics, s)
	c.mu.Unlock()
	return s, nil
}

func (c *MockCapabilities) AcquireSystemAudio(ctx context.Context) (capture.Stream, error) {
	if c.SystemErr != nil {
		return nil, c.SystemErr
	}
	s := NewMockStream(c.SystemAudioTracks, c.SystemVideoTracks)
	c.mu.Lock()
	c.Systems = append(c.Systems, s)
	c.mu.Unlock()
	return s, nil
}

func (c *MockCapabilities) CreateMixer(mic, system capture.Stream, gains capture.Gains) (capture.Mixer, error) {
	if c.MixerErr != nil {
		return nil, c.MixerErr
	}
	m := &MockMixer{Out: NewMockStream(1, 0), Gains: gains}
	c.mu.Lock()
	c.Mixers = append(c.Mixers, m)
	c.mu.Unlock()
	return m, nil
}

func (c *MockCapabilities) CreateRecorder(stream capture.Stream) (capture.Recorder, error) {
	if c.RecorderErr != nil {
		return nil, c.RecorderErr
	}
	r := &MockRecorder{Chunks: c.Chunks}
	c.mu.Lock()
	c.Recorder = r
	c.mu.Unlock()
	return r, nil
}

// CountingBlobs wraps [capture.MemoryBlobs] and counts Release calls per URI
type CountingBlobs struct {
	*capture.MemoryBlobs
	mu       sync.Mutex
	releases map[string]int
}

func NewCountingBlobs() *CountingBlobs {
	return &CountingBlobs{MemoryBlobs: capture.NewMemoryBlobs(), releases: make(map[string]int)}
}

func (b *CountingBlobs) Release(uri string) {
	b.mu.Lock()
	b.releases[uri]++
	b.mu.Unlock()
	b.MemoryBlobs.Release(uri)
}

func (b *CountingBlobs) Releases(uri string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.releases[uri]
}

// MockPlayer is a test double for [capture.Player]. End simulates playback reaching the end.
type MockPlayer struct {
	URI     string
	PlayErr error
	Playing bool
	Rewinds int
	Closed  bool
	onEnded func()
}

func (p *MockPlayer) Play(onEnded func()) error {
	if p.PlayErr != nil {
		return p.PlayErr
	}
	p.Playing = true
	p.onEnded = onEnded
	return nil
}

func (p *MockPlayer) Pause() { p.Playing = false }

func (p *MockPlayer) Rewind() { p.Rewinds++ }

func (p *MockPlayer) Close() error {
	p.Closed = true
	return nil
}

func (p *MockPlayer) End() {
	p.Playing = false
	if p.onEnded != nil {
		p.onEnded()
	}
}

// MockPlayers is a test double for [capture.Players] that remembers every player it opened.
// OnOpen, when set, runs before each player is returned.
type MockPlayers struct {
	OpenErr error
	PlayErr error
	OnOpen  func(uri string)
	Opened  []*MockPlayer

	mu sync.Mutex
}

func (m *MockPlayers) Open(uri string) (capture.Player, error) {
	if m.OnOpen != nil {
		m.OnOpen(uri)
	}
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	p := &MockPlayer{URI: uri, PlayErr: m.PlayErr}
	m.mu.Lock()
	m.Opened = append(m.Opened, p)
	m.mu.Unlock()
	return p, nil
}

// Last returns the most recently opened player opened for uri
func (m *MockPlayers) Last(uri string) *MockPlayer {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Opened) - 1; i >= 0; i-- {
		if m.Opened[i].URI == uri {
			return m.Opened[i]
		}
	}
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if err == nil && !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
