package speech

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bz888/eyesy-bot/internal/logger"
)

func sine(n, rate int, freq, amp float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestResampleConstant(t *testing.T) {
	in := make([]int16, 4800)
	for i := range in {
		in[i] = 1000
	}
	out := ResampleInt16(in, 48000, 16000)
	require.Len(t, out, 1600)
	for _, s := range out {
		assert.InDelta(t, 1000, s, 2)
	}
}

func TestResampleKeepsLowFrequencies(t *testing.T) {
	in := sine(4410, 44100, 450, 8000)
	out := ResampleInt16(in, 44100, 16000)
	require.Len(t, out, 1600)

	want := sine(1600, 16000, 450, 8000)
	for i := 100; i < 1500; i++ {
		assert.InDelta(t, want[i], out[i], 80, "sample %d", i)
	}
}

func TestResampleEdgeCases(t *testing.T) {
	assert.Nil(t, ResampleInt16(nil, 48000, 16000))
	in := []int16{1, 2, 3}
	same := ResampleInt16(in, 16000, 16000)
	assert.Equal(t, in, same)
	same[0] = 9
	assert.Equal(t, int16(1), in[0])
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, calculateRMS16(nil))
	assert.InDelta(t, 500, calculateRMS16([]int16{500, -500, 500, -500}), 1e-9)
}

func TestEncodeWAV(t *testing.T) {
	samples := sine(1600, SampleRate, 440, 4000)
	data, err := EncodeWAV(samples, SampleRate)
	require.NoError(t, err)

	dec := wav.NewDecoder(bytes.NewReader(data))
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, SampleRate, buf.Format.SampleRate)
	assert.Equal(t, ConvertInt16ToInt(samples), buf.Data)
}

func TestEncodeFLACRoundTrip(t *testing.T) {
	samples := sine(10000, SampleRate, 300, 12000)
	data, err := EncodeFLAC(samples, SampleRate)
	require.NoError(t, err)

	stream, err := flac.New(bytes.NewReader(data))
	require.NoError(t, err)
	defer stream.Close()
	assert.Equal(t, uint32(SampleRate), stream.Info.SampleRate)
	assert.Equal(t, uint64(len(samples)), stream.Info.NSamples)

	var got []int16
	for {
		f, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		for _, s := range f.Subframes[0].Samples {
			got = append(got, int16(s))
		}
	}
	assert.Equal(t, samples, got)
}

func TestEncodeFLACEmpty(t *testing.T) {
	_, err := EncodeFLAC(nil, SampleRate)
	assert.Error(t, err)
}

func TestParseResponse(t *testing.T) {
	body := "{\"result\":[]}\n{\"result\":[{\"alternative\":[{\"transcript\":\"draw a blue square\",\"confidence\":0.91},{\"transcript\":\"draw a blue squares\"}],\"final\":true}],\"result_index\":0}\n"
	text, confidence, err := parseResponse(body)
	require.NoError(t, err)
	assert.Equal(t, "draw a blue square", text)
	assert.InDelta(t, 0.91, confidence, 1e-9)

	_, _, err = parseResponse("{\"result\":[]}\n")
	assert.ErrorIs(t, err, ErrNoTranscript)

	_, _, err = parseResponse("not json")
	assert.Error(t, err)

	text, confidence, err = parseResponse(`{"result":[{"alternative":[{"transcript":"hello"}]}]}`)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, 0.5, confidence)
}

type fakeDetector struct {
	voice bool
	got   int
}

func (f *fakeDetector) DetectVoice(samples []int16) (bool, error) {
	f.got = len(samples)
	return f.voice, nil
}

func (f *fakeDetector) Close() error { return nil }

func recognizerServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "audio/x-flac; rate=16000", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.True(t, bytes.HasPrefix(body, []byte("fLaC")))
		io.WriteString(w, "{\"result\":[]}\n{\"result\":[{\"alternative\":[{\"transcript\":\" draw a circle \",\"confidence\":0.8}],\"final\":true}]}\n")
	}))
}

func TestPipelineTranscribe(t *testing.T) {
	srv := recognizerServer(t)
	defer srv.Close()

	rec := NewRecognizer("test-key")
	rec.URL = srv.URL
	detector := &fakeDetector{voice: true}
	dir := t.TempDir()
	p := &Pipeline{Detector: detector, Recognizer: rec, DebugDir: dir}

	text, err := p.Transcribe(context.Background(), sine(48000, 48000, 200, 6000), 48000)
	require.NoError(t, err)
	assert.Equal(t, "draw a circle", text)
	assert.Equal(t, SampleRate, detector.got)

	saved, err := filepath.Glob(filepath.Join(dir, "utterance_*.wav"))
	require.NoError(t, err)
	require.Len(t, saved, 1)
	info, err := os.Stat(saved[0])
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(2*SampleRate))
}

func TestPipelineNoVoice(t *testing.T) {
	p := &Pipeline{Detector: &fakeDetector{voice: false}, Recognizer: NewRecognizer("unused")}
	_, err := p.Transcribe(context.Background(), sine(16000, 16000, 200, 6000), 16000)
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestRecognizerHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusForbidden)
	}))
	defer srv.Close()

	rec := NewRecognizer("k")
	rec.URL = srv.URL
	_, _, err := rec.Recognize(context.Background(), []byte("fLaC"), SampleRate)
	assert.ErrorContains(t, err, "403")
}

func TestNewListenerNeedsKey(t *testing.T) {
	_, err := NewListener(Config{})
	assert.ErrorIs(t, err, ErrDisabled)
}

// fakeMic fills its buffer from frames in turn, then repeats silence. err,
// when set, is returned by every Read.
type fakeMic struct {
	buf    []int16
	frames [][]int16
	err    error
	reads  int
}

func (m *fakeMic) Read() error {
	m.reads++
	if m.err != nil {
		return m.err
	}
	for i := range m.buf {
		m.buf[i] = 0
	}
	if len(m.frames) > 0 {
		copy(m.buf, m.frames[0])
		m.frames = m.frames[1:]
	}
	return nil
}

func newCapture(mic *fakeMic, maxSegment time.Duration) *capture {
	return &capture{
		src:        mic,
		in:         mic.buf,
		minVolume:  minMicVolume,
		silence:    0,
		maxSegment: maxSegment,
		log:        logger.NewLogger("speech test"),
	}
}

func TestCaptureGivesUpOnPersistentReadError(t *testing.T) {
	mic := &fakeMic{buf: make([]int16, 64), err: errors.New("input overflowed")}

	done := make(chan error, 1)
	go func() {
		_, err := newCapture(mic, 50*time.Millisecond).run(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "input overflowed")
	case <-time.After(5 * time.Second):
		t.Fatal("capture kept retrying past its deadline")
	}
	assert.Greater(t, mic.reads, 0)
}

func TestCaptureStopsAfterSilence(t *testing.T) {
	loud := sine(64, SampleRate, 500, 8000)
	mic := &fakeMic{buf: make([]int16, 64), frames: [][]int16{loud}}

	got, err := newCapture(mic, time.Minute).run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, loud, got)
}

func TestCaptureNoSpeech(t *testing.T) {
	mic := &fakeMic{buf: make([]int16, 64)}
	_, err := newCapture(mic, 20*time.Millisecond).run(context.Background())
	assert.ErrorIs(t, err, ErrNoSpeech)
}
