package softcap

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/compuse/internal/capture"
	"github.com/desertthunder/compuse/internal/models"
)

var testFormat = Format{SampleRate: 8000, Channels: 1}

func pcm(samples ...int16) []byte {
	buf := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(s))
	}
	return buf
}

func samples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

func ramp(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(i * 10)
	}
	return out
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestWAV(t *testing.T) {
	t.Run("encode and decode", func(t *testing.T) {
		data := EncodeWAV(Format{SampleRate: 44100, Channels: 2}, pcm(1, -1, 2, -2))

		if len(data) != 44+8 {
			t.Fatalf("len = %d, want 52", len(data))
		}
		got, format, err := DecodeWAV(data)
		if err != nil {
			t.Fatalf("DecodeWAV() error = %v", err)
		}
		if format != (Format{SampleRate: 44100, Channels: 2}) {
			t.Errorf("format = %+v", format)
		}
		if !bytes.Equal(got, pcm(1, -1, 2, -2)) {
			t.Errorf("pcm = %v", samples(got))
		}
	})

	t.Run("streaming header reads to end", func(t *testing.T) {
		data := append(WAVHeader(testFormat, -1), pcm(5, 6, 7)...)

		got, _, err := DecodeWAV(data)
		if err != nil {
			t.Fatalf("DecodeWAV() error = %v", err)
		}
		if !bytes.Equal(got, pcm(5, 6, 7)) {
			t.Errorf("pcm = %v, want [5 6 7]", samples(got))
		}
	})

	t.Run("skips unknown chunks", func(t *testing.T) {
		h := WAVHeader(testFormat, 2)
		list := append([]byte("LIST"), 3, 0, 0, 0, 'a', 'b', 'c', 0)
		data := slicesConcat(h[:36], list, h[36:], pcm(9))

		got, _, err := DecodeWAV(data)
		if err != nil {
			t.Fatalf("DecodeWAV() error = %v", err)
		}
		if !bytes.Equal(got, pcm(9)) {
			t.Errorf("pcm = %v, want [9]", samples(got))
		}
	})

	t.Run("rejects", func(t *testing.T) {
		for name, data := range map[string][]byte{
			"empty":    nil,
			"not riff": []byte("OggS0000WAVE"),
			"no data":  WAVHeader(testFormat, 0)[:36],
		} {
			if _, _, err := DecodeWAV(data); !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("%s: error = %v, want ErrUnsupportedFormat", name, err)
			}
		}
	})
}

func slicesConcat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestMix(t *testing.T) {
	tests := []struct {
		name  string
		a, b  int16
		gains capture.Gains
		want  int16
	}{
		{"unity", 100, 200, capture.UnityGains, 300},
		{"muted system", 100, 200, capture.Gains{Mic: 1, System: 0}, 100},
		{"half", 100, 200, capture.Gains{Mic: 0.5, System: 0.5}, 150},
		{"clamps high", 30000, 30000, capture.UnityGains, 32767},
		{"clamps low", -30000, -30000, capture.UnityGains, -32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, 2)
			Mix(dst, pcm(tt.a), pcm(tt.b), tt.gains)
			if got := samples(dst)[0]; got != tt.want {
				t.Errorf("Mix() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestConvert(t *testing.T) {
	t.Run("same format passes through", func(t *testing.T) {
		r := bytes.NewReader(pcm(1, 2))
		if Convert(r, testFormat, testFormat) != io.Reader(r) {
			t.Error("expected the source reader")
		}
	})

	t.Run("mono to stereo", func(t *testing.T) {
		out, _ := io.ReadAll(Convert(bytes.NewReader(pcm(1, 2)), testFormat, Format{SampleRate: 8000, Channels: 2}))
		if got := samples(out); !equal(got, []int16{1, 1, 2, 2}) {
			t.Errorf("got %v", got)
		}
	})

	t.Run("stereo to mono averages", func(t *testing.T) {
		out, _ := io.ReadAll(Convert(bytes.NewReader(pcm(10, 20)), Format{SampleRate: 8000, Channels: 2}, testFormat))
		if got := samples(out); !equal(got, []int16{15}) {
			t.Errorf("got %v", got)
		}
	})

	t.Run("halves the rate", func(t *testing.T) {
		out, _ := io.ReadAll(Convert(bytes.NewReader(pcm(0, 1, 2, 3, 4, 5)), Format{SampleRate: 16000, Channels: 1}, testFormat))
		if got := samples(out); len(got) != 3 {
			t.Errorf("got %v, want 3 frames", got)
		}
	})

	t.Run("doubles the rate", func(t *testing.T) {
		out, _ := io.ReadAll(Convert(bytes.NewReader(pcm(7, 8)), testFormat, Format{SampleRate: 16000, Channels: 1}))
		if got := samples(out); !equal(got, []int16{7, 7, 8, 8}) {
			t.Errorf("got %v", got)
		}
	})
}

func equal(a, b []int16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDecode(t *testing.T) {
	t.Run("wav by mime", func(t *testing.T) {
		src, err := Decode(EncodeWAV(testFormat, pcm(3, 4)), "audio/wav; codecs=1")
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		out, _ := io.ReadAll(src)
		if src.Format != testFormat || !bytes.Equal(out, pcm(3, 4)) {
			t.Errorf("got %v in %+v", samples(out), src.Format)
		}
	})

	t.Run("unknown mime", func(t *testing.T) {
		if _, err := Decode(nil, "video/webm"); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("error = %v, want ErrUnsupportedFormat", err)
		}
	})

	t.Run("raw file uses the given format", func(t *testing.T) {
		path := writeTemp(t, "mic.pcm", pcm(1, 2, 3))
		src, err := OpenFile(path, testFormat)
		if err != nil {
			t.Fatalf("OpenFile() error = %v", err)
		}
		defer src.Close()

		out, _ := io.ReadAll(src)
		if !bytes.Equal(out, pcm(1, 2, 3)) {
			t.Errorf("got %v", samples(out))
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := OpenFile(filepath.Join(t.TempDir(), "nope.mp3"), testFormat); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("mime types", func(t *testing.T) {
		for name, want := range map[string]string{
			"a.WAV":  "audio/wav",
			"b.mp3":  "audio/mpeg",
			"c.flac": "audio/flac",
			"d.pcm":  "application/octet-stream",
		} {
			if got := MimeType(name); got != want {
				t.Errorf("MimeType(%q) = %q, want %q", name, got, want)
			}
		}
	})

	t.Run("extensions", func(t *testing.T) {
		for mime, want := range map[string]string{
			"audio/wav":  ".wav",
			"audio/mpeg": ".mp3",
			"audio/flac": ".flac",
			"video/webm": ".bin",
		} {
			if got := Extension(mime); got != want {
				t.Errorf("Extension(%q) = %q, want %q", mime, got, want)
			}
		}
	})
}

// spy exposes the recorder the engine creates.
type spy struct {
	*Provider
	rec *Recorder
}

func (s *spy) CreateRecorder(stream capture.Stream) (capture.Recorder, error) {
	r, err := s.Provider.CreateRecorder(stream)
	if err != nil {
		return nil, err
	}
	s.rec = r.(*Recorder)
	return r, nil
}

func newEngine(t *testing.T, opts Options) (*capture.Engine, *spy, *capture.MemoryBlobs) {
	t.Helper()
	opts.Format = testFormat
	opts.ChunkFrames = 80

	caps := &spy{Provider: New(opts)}
	blobs := capture.NewMemoryBlobs()
	engine, err := capture.NewEngine(capture.Options{Capabilities: caps, Blobs: blobs, Players: noPlayers{}})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine, caps, blobs
}

type noPlayers struct{}

func (noPlayers) Open(string) (capture.Player, error) { return nil, errors.New("no playback") }

func waitDrained(t *testing.T, r *Recorder) {
	t.Helper()
	select {
	case <-r.Drained():
	case <-time.After(5 * time.Second):
		t.Fatal("recorder never drained its input")
	}
}

func TestProviderCapture(t *testing.T) {
	t.Run("mic recording round trips through wav", func(t *testing.T) {
		input := pcm(ramp(400)...)
		engine, caps, blobs := newEngine(t, Options{MicInput: writeTemp(t, "mic.pcm", input)})

		if err := engine.StartMicCapture(context.Background()); err != nil {
			t.Fatalf("StartMicCapture() error = %v", err)
		}
		waitDrained(t, caps.rec)

		clip, err := engine.Stop()
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
		if clip.MimeType != WAVMimeType {
			t.Errorf("MimeType = %q", clip.MimeType)
		}

		data, _, err := blobs.Open(clip.SourceURI)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		got, format, err := DecodeWAV(data)
		if err != nil {
			t.Fatalf("DecodeWAV() error = %v", err)
		}
		if format != testFormat {
			t.Errorf("format = %+v, want %+v", format, testFormat)
		}
		if !bytes.Equal(got, input) {
			t.Errorf("recorded %d bytes, want the %d input bytes", len(got), len(input))
		}
	})

	t.Run("stop returns while stdin has no data", func(t *testing.T) {
		pr, pw := io.Pipe()
		t.Cleanup(func() { pw.Close() })

		engine, _, _ := newEngine(t, Options{MicInput: "-", Stdin: pr})
		if err := engine.StartMicCapture(context.Background()); err != nil {
			t.Fatalf("StartMicCapture() error = %v", err)
		}

		type result struct {
			clip models.AudioClip
			err  error
		}
		done := make(chan result, 1)
		go func() {
			clip, err := engine.Stop()
			done <- result{clip, err}
		}()

		select {
		case res := <-done:
			if res.err != nil {
				t.Fatalf("Stop() error = %v", res.err)
			}
			if res.clip.Size < wavHeaderLen {
				t.Errorf("clip size = %d, want at least the WAV header", res.clip.Size)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Stop() blocked on the stdin read")
		}

		if engine.State() != capture.Idle {
			t.Errorf("State() = %v, want Idle", engine.State())
		}
		if len(engine.Clips()) != 1 {
			t.Errorf("Clips() = %d, want 1", len(engine.Clips()))
		}
	})

	t.Run("mixed recording applies gains", func(t *testing.T) {
		engine, caps, blobs := newEngine(t, Options{
			MicInput:    writeTemp(t, "mic.pcm", pcm(100, 100, 100, 100)),
			SystemInput: writeTemp(t, "base.pcm", pcm(1000, 1000)),
		})
		engine.SetGain(capture.SystemSource, 0.5)

		if err := engine.StartMixedCapture(context.Background(), "Base"); err != nil {
			t.Fatalf("StartMixedCapture() error = %v", err)
		}
		waitDrained(t, caps.rec)

		clip, err := engine.Stop()
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
		data, _, _ := blobs.Open(clip.SourceURI)
		got, _, err := DecodeWAV(data)
		if err != nil {
			t.Fatalf("DecodeWAV() error = %v", err)
		}
		if want := []int16{600, 600, 100, 100}; !equal(samples(got), want) {
			t.Errorf("mixed = %v, want %v", samples(got), want)
		}
	})

	t.Run("denied mic", func(t *testing.T) {
		engine, _, _ := newEngine(t, Options{DenyMic: true})
		if err := engine.StartMicCapture(context.Background()); !errors.Is(err, capture.ErrPermissionDenied) {
			t.Errorf("error = %v, want ErrPermissionDenied", err)
		}
	})

	t.Run("share without audio", func(t *testing.T) {
		engine, _, _ := newEngine(t, Options{NoSystemAudio: true})
		if err := engine.StartMixedCapture(context.Background(), ""); !errors.Is(err, capture.ErrAudioNotShared) {
			t.Errorf("error = %v, want ErrAudioNotShared", err)
		}
		if engine.State() != capture.Idle {
			t.Errorf("State() = %v, want idle", engine.State())
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := New(Options{})
		if _, err := p.AcquireMic(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

func TestStream(t *testing.T) {
	s := newStream(&Source{Reader: bytes.NewReader(pcm(1)), Format: testFormat}, testFormat, 1, 1)

	s.VideoTracks()[0].Stop()
	if _, err := s.Read(make([]byte, 2)); err != nil {
		t.Errorf("stopping video should not end audio: %v", err)
	}

	s.AudioTracks()[0].Stop()
	if _, err := s.Read(make([]byte, 2)); err != io.EOF {
		t.Errorf("Read() after audio stop error = %v, want EOF", err)
	}
}

func TestRecorder(t *testing.T) {
	t.Run("second start is rejected", func(t *testing.T) {
		s := newStream(&Source{Reader: bytes.NewReader(pcm(1, 2)), Format: testFormat}, testFormat, 1, 0)
		r := NewRecorder(s, 1, log.New(io.Discard))

		sink := func([]byte) {}
		if err := r.Start(sink); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := r.Start(sink); !errors.Is(err, ErrRecorderStarted) {
			t.Errorf("second Start() error = %v, want ErrRecorderStarted", err)
		}
		if err := r.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
		if err := r.Stop(); err != nil {
			t.Errorf("second Stop() error = %v", err)
		}
	})
}
