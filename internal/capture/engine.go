package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/shared"
)

// State is the capture state of an [Engine].
type State int

const (
	Idle State = iota
	AcquiringMic
	RecordingMic
	AcquiringSystemAudio
	RecordingMixed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AcquiringMic:
		return "acquiring_mic"
	case RecordingMic:
		return "recording_mic"
	case AcquiringSystemAudio:
		return "acquiring_system_audio"
	case RecordingMixed:
		return "recording_mixed"
	default:
		return ""
	}
}

// Recording reports whether s has a live recorder.
func (s State) Recording() bool {
	return s == RecordingMic || s == RecordingMixed
}

// Mode is the kind of capture a session performs.
type Mode int

const (
	MicOnly Mode = iota
	MicPlusSystemAudio
)

// Options configures an [Engine]. Capabilities, Blobs and Players are required.
type Options struct {
	Capabilities Capabilities
	Blobs        Blobs
	Players      Players
	Logger       *log.Logger
	Gains        Gains

	OnClipsChanged    func(clips []models.AudioClip) // Full clip list after every add, rename or delete
	OnStateChanged    func(state State)
	OnPlaybackChanged func(playingID string) // Empty when nothing is playing
	OnError           func(err error)        // Every failure, in addition to the returned error

	Now   func() time.Time
	NewID func() string
}

// Engine records audio clips and manages their playback for one editing session.
//
// An Engine exclusively owns the streams, mixer and recorder of its active session and the players it opens.
// Close releases all of them.
type Engine struct {
	mu      sync.Mutex
	caps    Capabilities
	blobs   Blobs
	players Players
	logger  *log.Logger
	gains   Gains
	state   State
	session *session
	clips   []models.AudioClip
	handles map[string]Player
	playing string
	closed  bool
	now     func() time.Time
	newID   func() string
	onClips func([]models.AudioClip)
	onState func(State)
	onPlay  func(string)
	onError func(error)
}

// session is one bounded recording attempt.
type session struct {
	mode     Mode
	baseName string
	streams  []Stream
	mixer    Mixer
	recorder Recorder

	chunkMu sync.Mutex
	chunks  [][]byte
}

func (s *session) append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.chunkMu.Lock()
	s.chunks = append(s.chunks, slices.Clone(chunk))
	s.chunkMu.Unlock()
}

// flush joins and discards the accumulated chunks.
func (s *session) flush() []byte {
	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()

	data := slices.Concat(s.chunks...)
	s.chunks = nil
	return data
}

// release stops every owned stream and tears down the mixer.
func (s *session) release() error {
	var err error
	if s.mixer != nil {
		err = s.mixer.Close()
		s.mixer = nil
	}
	releaseStreams(s.streams...)
	s.streams = nil
	return err
}

func releaseStreams(streams ...Stream) {
	for _, st := range streams {
		if st != nil {
			st.Stop()
		}
	}
}

// NewEngine creates an idle engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Capabilities == nil || opts.Blobs == nil || opts.Players == nil {
		return nil, fmt.Errorf("%w: capabilities, blobs and players are required", shared.ErrMissingArgument)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Gains == (Gains{}) {
		opts.Gains = UnityGains
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = shared.GenerateID
	}

	return &Engine{
		caps:    opts.Capabilities,
		blobs:   opts.Blobs,
		players: opts.Players,
		logger:  opts.Logger,
		gains:   opts.Gains,
		handles: make(map[string]Player),
		now:     opts.Now,
		newID:   opts.NewID,
		onClips: opts.OnClipsChanged,
		onState: opts.OnStateChanged,
		onPlay:  opts.OnPlaybackChanged,
		onError: opts.OnError,
	}, nil
}

// State returns the current capture state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Clips returns a copy of the clip list.
func (e *Engine) Clips() []models.AudioClip {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.clips)
}

// Playing returns the ID of the clip being played, or "".
func (e *Engine) Playing() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Load replaces the clip list, e.g. with the stored clips of a draft being reopened.
// Transient audio of dropped clips is released. It does not notify OnClipsChanged.
func (e *Engine) Load(clips []models.AudioClip) {
	e.mu.Lock()
	e.stopPlaybackLocked()
	for id, p := range e.handles {
		p.Close()
		delete(e.handles, id)
	}
	for _, clip := range e.clips {
		if clip.IsTransient() && !slices.ContainsFunc(clips, func(c models.AudioClip) bool { return c.SourceURI == clip.SourceURI }) {
			e.blobs.Release(clip.SourceURI)
		}
	}
	e.clips = slices.Clone(clips)
	e.mu.Unlock()

	e.emitPlayback("")
}

// StartMicCapture starts recording from the microphone alone.
//
// Playback is stopped first. A denied prompt fails with [ErrPermissionDenied] and leaves the engine idle.
func (e *Engine) StartMicCapture(ctx context.Context) error {
	if err := e.begin(OpStartMic, AcquiringMic); err != nil {
		return err
	}

	mic, err := e.caps.AcquireMic(ctx)
	if err != nil {
		return e.abort(OpStartMic, classify(err), err)
	}

	rec, err := e.caps.CreateRecorder(mic)
	if err != nil {
		return e.abort(OpStartMic, ErrCaptureFailed, err, mic)
	}

	sess := &session{mode: MicOnly, streams: []Stream{mic}, recorder: rec}
	return e.commit(OpStartMic, sess, RecordingMic)
}

// StartMixedCapture records the microphone mixed with system or tab audio.
//
// baseName, when set, names the resulting clip "{baseName} (com base)". Video tracks of the share are
// stopped immediately. A share without audio fails with [ErrAudioNotShared]. Every failure releases all
// streams acquired so far.
func (e *Engine) StartMixedCapture(ctx context.Context, baseName string) error {
	if err := e.begin(OpStartMixed, AcquiringSystemAudio); err != nil {
		return err
	}

	mic, err := e.caps.AcquireMic(ctx)
	if err != nil {
		return e.abort(OpStartMixed, classify(err), err)
	}

	system, err := e.caps.AcquireSystemAudio(ctx)
	if err != nil {
		return e.abort(OpStartMixed, classify(err), err, mic)
	}

	for _, track := range system.VideoTracks() {
		track.Stop()
	}

	if len(system.AudioTracks()) == 0 {
		return e.abort(OpStartMixed, ErrAudioNotShared, nil, mic, system)
	}

	e.mu.Lock()
	gains := e.gains
	e.mu.Unlock()

	mixer, err := e.caps.CreateMixer(mic, system, gains)
	if err != nil {
		return e.abort(OpStartMixed, ErrCaptureFailed, err, mic, system)
	}

	rec, err := e.caps.CreateRecorder(mixer.Output())
	if err != nil {
		mixer.Close()
		return e.abort(OpStartMixed, ErrCaptureFailed, err, mic, system)
	}

	sess := &session{
		mode:     MicPlusSystemAudio,
		baseName: strings.TrimSpace(baseName),
		streams:  []Stream{mic, system},
		mixer:    mixer,
		recorder: rec,
	}
	return e.commit(OpStartMixed, sess, RecordingMixed)
}

// Stop finalizes the active recording into a new clip and releases the session.
//
// The clip is appended to the list, which is then handed to OnClipsChanged in full.
func (e *Engine) Stop() (models.AudioClip, error) {
	e.mu.Lock()
	if !e.state.Recording() || e.session == nil {
		e.mu.Unlock()
		return models.AudioClip{}, e.report(newError(OpStop, ErrNotRecording, nil))
	}

	// The state stays Recording until the clip is added, so no new session can start meanwhile.
	sess := e.session
	e.session = nil
	e.mu.Unlock()

	stopErr := sess.recorder.Stop()
	if err := sess.release(); err != nil {
		e.logger.Warn("failed to close mixer", "error", err)
	}
	data := sess.flush()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return models.AudioClip{}, e.report(newError(OpStop, ErrEngineClosed, nil))
	}
	if stopErr != nil {
		e.state = Idle
		e.mu.Unlock()
		e.emitState(Idle)
		return models.AudioClip{}, e.report(newError(OpStop, ErrCaptureFailed, stopErr))
	}

	mimeType := sess.recorder.MimeType()
	clip := models.AudioClip{
		ID:        e.newID(),
		Name:      defaultName(sess, len(e.clips)),
		SourceURI: e.blobs.Create(data, mimeType),
		MimeType:  mimeType,
		Size:      len(data),
		CreatedAt: e.now(),
	}
	e.clips = append(e.clips, clip)
	e.state = Idle
	snapshot := slices.Clone(e.clips)
	e.mu.Unlock()

	e.logger.Info("clip recorded", "id", clip.ID, "name", clip.Name, "bytes", clip.Size)
	e.emitState(Idle)
	e.emitClips(snapshot)

	return clip, nil
}

// SetGain changes the gain of one mixer input. It applies to the active mixed session, if any,
// and to every later one.
func (e *Engine) SetGain(src Source, gain float64) error {
	if gain < 0 || math.IsNaN(gain) || math.IsInf(gain, 0) {
		return e.report(newError(OpGain, ErrInvalidGain, fmt.Errorf("%s gain %v", src, gain)))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch src {
	case MicSource:
		e.gains.Mic = gain
	case SystemSource:
		e.gains.System = gain
	default:
		return newError(OpGain, ErrInvalidGain, fmt.Errorf("unknown source %d", src))
	}

	if e.session != nil && e.session.mixer != nil {
		if err := e.session.mixer.SetGain(src, gain); err != nil {
			return newError(OpGain, ErrCaptureFailed, err)
		}
	}
	return nil
}

// Gains returns the gains used for mixed sessions.
func (e *Engine) Gains() Gains {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gains
}

// RenameClip renames a clip in place.
func (e *Engine) RenameClip(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return e.report(newError(OpRename, ErrInvalidClipName, nil))
	}

	e.mu.Lock()
	i := e.indexLocked(id)
	if i < 0 {
		e.mu.Unlock()
		return e.report(newError(OpRename, ErrClipNotFound, fmt.Errorf("id %s", id)))
	}
	e.clips[i].Name = name
	snapshot := slices.Clone(e.clips)
	e.mu.Unlock()

	e.emitClips(snapshot)
	return nil
}

// DeleteClip removes a clip, closing its player and releasing its transient audio.
func (e *Engine) DeleteClip(id string) error {
	e.mu.Lock()
	i := e.indexLocked(id)
	if i < 0 {
		e.mu.Unlock()
		return e.report(newError(OpDelete, ErrClipNotFound, fmt.Errorf("id %s", id)))
	}

	clip := e.clips[i]
	e.clips = slices.Delete(e.clips, i, i+1)

	wasPlaying := e.playing == id
	if p, ok := e.handles[id]; ok {
		p.Pause()
		p.Close()
		delete(e.handles, id)
	}
	if wasPlaying {
		e.playing = ""
	}
	if clip.IsTransient() {
		e.blobs.Release(clip.SourceURI)
	}
	snapshot := slices.Clone(e.clips)
	e.mu.Unlock()

	if wasPlaying {
		e.emitPlayback("")
	}
	e.emitClips(snapshot)
	return nil
}

// MarkPersisted swaps a clip's transient URI for a durable one once the host has stored its audio.
//
// The clip ID is unchanged, the transient audio is released and OnClipsChanged is not invoked.
func (e *Engine) MarkPersisted(id, uri string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexLocked(id)
	if i < 0 {
		return newError(OpPersist, ErrClipNotFound, fmt.Errorf("id %s", id))
	}

	old := e.clips[i].SourceURI
	if old == uri {
		return nil
	}
	e.clips[i].SourceURI = uri

	// a clip that is playing keeps its handle until the next toggle
	if p, ok := e.handles[id]; ok && e.playing != id {
		p.Close()
		delete(e.handles, id)
	}
	if models.IsTransientURI(old) {
		e.blobs.Release(old)
	}
	return nil
}

// TogglePlay plays the clip, or pauses it if it is already playing.
//
// Starting a clip pauses and rewinds whichever clip was playing. Players are opened lazily and reused.
func (e *Engine) TogglePlay(id string) error {
	e.mu.Lock()
	i := e.indexLocked(id)
	if i < 0 {
		e.mu.Unlock()
		return e.report(newError(OpPlay, ErrClipNotFound, fmt.Errorf("id %s", id)))
	}

	if e.playing == id {
		e.handles[id].Pause()
		e.playing = ""
		e.mu.Unlock()
		e.emitPlayback("")
		return nil
	}

	p, cached := e.handles[id]
	uri := e.clips[i].SourceURI
	e.mu.Unlock()

	// Opening can fetch and decode the whole clip, so it runs unlocked.
	if !cached {
		opened, err := e.players.Open(uri)
		if err != nil {
			e.mu.Lock()
			e.stopPlaybackLocked()
			e.mu.Unlock()
			e.emitPlayback("")
			return e.report(newError(OpPlay, ErrPlayback, err))
		}
		p = opened
	}

	e.mu.Lock()
	if e.closed || e.indexLocked(id) < 0 {
		closed := e.closed
		e.mu.Unlock()
		if !cached {
			p.Close()
		}
		if closed {
			return e.report(newError(OpPlay, ErrEngineClosed, nil))
		}
		return e.report(newError(OpPlay, ErrClipNotFound, fmt.Errorf("id %s", id)))
	}

	current, ok := e.handles[id]
	switch {
	case ok && current != p:
		// another toggle opened one first
		if !cached {
			p.Close()
		}
		p = current
	case !ok && cached:
		// the cached player was dropped while unlocked
		e.mu.Unlock()
		return e.TogglePlay(id)
	case !ok:
		e.handles[id] = p
	}

	if e.playing == id {
		e.mu.Unlock()
		return nil
	}

	e.stopPlaybackLocked()
	if err := p.Play(func() { e.ended(id) }); err != nil {
		e.mu.Unlock()
		e.emitPlayback("")
		return e.report(newError(OpPlay, ErrPlayback, err))
	}

	e.playing = id
	e.mu.Unlock()

	e.emitPlayback(id)
	return nil
}

// StopPlayback pauses and rewinds the playing clip, if any.
func (e *Engine) StopPlayback() {
	e.mu.Lock()
	was := e.stopPlaybackLocked()
	e.mu.Unlock()

	if was {
		e.emitPlayback("")
	}
}

// Close ends any session, closes every player and releases transient clip audio.
// The engine cannot record or play afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true

	var errs []error
	sess := e.session
	e.session = nil
	e.state = Idle
	e.playing = ""

	for id, p := range e.handles {
		p.Pause()
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(e.handles, id)
	}

	for _, clip := range e.clips {
		if clip.IsTransient() {
			e.blobs.Release(clip.SourceURI)
		}
	}
	e.mu.Unlock()

	if sess != nil {
		if err := sess.recorder.Stop(); err != nil {
			errs = append(errs, err)
		}
		if err := sess.release(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// begin moves an idle engine into an acquiring state, stopping playback first.
func (e *Engine) begin(op Op, next State) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return e.report(newError(op, ErrEngineClosed, nil))
	}
	if e.state != Idle {
		current := e.state
		e.mu.Unlock()
		return e.report(newError(op, ErrSessionActive, fmt.Errorf("engine is %s", current)))
	}

	e.state = next
	stopped := e.stopPlaybackLocked()
	e.mu.Unlock()

	if stopped {
		e.emitPlayback("")
	}
	e.emitState(next)
	return nil
}

// commit starts the session's recorder and makes it the active session.
func (e *Engine) commit(op Op, sess *session, next State) error {
	if err := sess.recorder.Start(sess.append); err != nil {
		sess.release()
		return e.abort(op, ErrCaptureFailed, err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		sess.recorder.Stop()
		sess.release()
		return e.report(newError(op, ErrEngineClosed, nil))
	}
	e.session = sess
	e.state = next
	e.mu.Unlock()

	e.logger.Info("recording started", "mode", next)
	e.emitState(next)
	return nil
}

// abort releases streams acquired by a failed start and returns to idle.
func (e *Engine) abort(op Op, kind, cause error, acquired ...Stream) error {
	releaseStreams(acquired...)

	e.mu.Lock()
	if !e.closed {
		e.state = Idle
	}
	e.mu.Unlock()

	e.emitState(Idle)
	return e.report(newError(op, kind, cause))
}

func (e *Engine) ended(id string) {
	e.mu.Lock()
	if e.playing != id {
		e.mu.Unlock()
		return
	}
	if p, ok := e.handles[id]; ok {
		p.Rewind()
	}
	e.playing = ""
	e.mu.Unlock()

	e.emitPlayback("")
}

func (e *Engine) stopPlaybackLocked() bool {
	if e.playing == "" {
		return false
	}
	if p, ok := e.handles[e.playing]; ok {
		p.Pause()
		p.Rewind()
	}
	e.playing = ""
	return true
}

func (e *Engine) indexLocked(id string) int {
	return slices.IndexFunc(e.clips, func(c models.AudioClip) bool { return c.ID == id })
}

func (e *Engine) report(err *Error) error {
	e.logger.Warn("capture engine error", "op", err.Op, "error", err)
	if e.onError != nil {
		e.onError(err)
	}
	return err
}

func (e *Engine) emitClips(clips []models.AudioClip) {
	if e.onClips != nil {
		e.onClips(clips)
	}
}

func (e *Engine) emitState(s State) {
	if e.onState != nil {
		e.onState(s)
	}
}

func (e *Engine) emitPlayback(id string) {
	if e.onPlay != nil {
		e.onPlay(id)
	}
}

func defaultName(sess *session, count int) string {
	if sess.mode == MicPlusSystemAudio {
		if sess.baseName != "" {
			return fmt.Sprintf("%s (com base)", sess.baseName)
		}
		return fmt.Sprintf("Prévia %d", count+1)
	}
	return fmt.Sprintf("Áudio %d", count+1)
}
