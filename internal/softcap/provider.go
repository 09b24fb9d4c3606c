package softcap

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/compuse/internal/capture"
	"github.com/desertthunder/compuse/internal/shared"
)

// Options configures a [Provider].
type Options struct {
	Format      Format
	ChunkFrames int
	MicInput    string // audio file standing in for the microphone; "" is silence, "-" is raw PCM on stdin
	SystemInput string // backing track standing in for system audio; "" is silence

	DenyMic       bool // simulate a refused microphone prompt
	DenySystem    bool // simulate a refused screen/tab share
	NoSystemAudio bool // simulate a share granted without its audio

	Stdin  io.Reader
	Logger *log.Logger
}

// Provider implements [capture.Capabilities] with files and software mixing.
type Provider struct {
	opts Options
}

// New creates a provider, filling in defaults from the capture config section.
func New(opts Options) *Provider {
	if !opts.Format.valid() {
		opts.Format = Format{SampleRate: 44100, Channels: 2}
	}
	if opts.ChunkFrames <= 0 {
		opts.ChunkFrames = 4096
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Provider{opts: opts}
}

// FromConfig builds provider options from the capture config section.
func FromConfig(c shared.CaptureConfig) Options {
	return Options{
		Format:      Format{SampleRate: c.SampleRate, Channels: c.Channels},
		ChunkFrames: c.ChunkFrames,
		MicInput:    c.MicInput,
		SystemInput: c.SystemInput,
	}
}

func (p *Provider) AcquireMic(ctx context.Context) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.opts.DenyMic {
		return nil, fmt.Errorf("%w: microphone access refused", capture.ErrPermissionDenied)
	}

	src, err := p.open(p.opts.MicInput)
	if err != nil {
		return nil, fmt.Errorf("failed to open microphone input: %w", err)
	}

	p.opts.Logger.Debug("microphone acquired", "input", describe(p.opts.MicInput))
	return newStream(src, p.opts.Format, 1, 0), nil
}

// AcquireSystemAudio returns a share with one video track and, unless NoSystemAudio is set, one audio track.
func (p *Provider) AcquireSystemAudio(ctx context.Context) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.opts.DenySystem {
		return nil, fmt.Errorf("%w: screen share refused", capture.ErrPermissionDenied)
	}
	if p.opts.NoSystemAudio {
		return newStream(nil, p.opts.Format, 0, 1), nil
	}

	src, err := p.open(p.opts.SystemInput)
	if err != nil {
		return nil, fmt.Errorf("failed to open system input: %w", err)
	}

	p.opts.Logger.Debug("system audio acquired", "input", describe(p.opts.SystemInput))
	return newStream(src, p.opts.Format, 1, 1), nil
}

func (p *Provider) CreateMixer(mic, system capture.Stream, gains capture.Gains) (capture.Mixer, error) {
	ms, ok := mic.(*Stream)
	if !ok {
		return nil, fmt.Errorf("%w: microphone stream %T", shared.ErrInvalidArgument, mic)
	}
	ss, ok := system.(*Stream)
	if !ok {
		return nil, fmt.Errorf("%w: system stream %T", shared.ErrInvalidArgument, system)
	}

	m, err := NewMixer(ms, ss, gains)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (p *Provider) CreateRecorder(stream capture.Stream) (capture.Recorder, error) {
	s, ok := stream.(*Stream)
	if !ok {
		return nil, fmt.Errorf("%w: stream %T", shared.ErrInvalidArgument, stream)
	}
	return NewRecorder(s, p.opts.ChunkFrames, p.opts.Logger), nil
}

func (p *Provider) open(input string) (*Source, error) {
	switch input {
	case "":
		return &Source{Reader: silence{}, Format: p.opts.Format}, nil
	case "-":
		return &Source{Reader: p.opts.Stdin, Format: p.opts.Format}, nil
	default:
		return OpenFile(input, p.opts.Format)
	}
}

func describe(input string) string {
	switch input {
	case "":
		return "silence"
	case "-":
		return "stdin"
	default:
		return input
	}
}

type silence struct{}

func (silence) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

var _ capture.Capabilities = (*Provider)(nil)
