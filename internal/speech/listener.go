package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/bz888/eyesy-bot/internal/logger"
)

const (
	minMicVolume       = 450
	sendToVADDelay     = time.Second
	maxSegmentDuration = 25 * time.Second
	framesPerBuffer    = 512 * 9
)

var (
	ErrDisabled = errors.New("API_KEY is required to enable voice recognition")
	ErrNoSpeech = errors.New("no speech detected")
)

// Config selects the VAD model and recognizer credentials.
type Config struct {
	APIKey   string
	VADModel string
	// DeviceID picks an input device by index; negative uses the default.
	DeviceID int
	// DebugDir, when set, keeps each resampled utterance there as a WAV file.
	DebugDir string
}

// Listener records one utterance from the microphone and turns it into text.
type Listener struct {
	cfg        Config
	recognizer *Recognizer

	localLogger *logger.Logger
}

func NewListener(cfg Config) (*Listener, error) {
	if cfg.APIKey == "" {
		return nil, ErrDisabled
	}
	return &Listener{
		cfg:         cfg,
		recognizer:  NewRecognizer(cfg.APIKey),
		localLogger: logger.NewLogger("speech"),
	}, nil
}

// Listen blocks until the speaker pauses, ctx is done or the maximum segment
// length is reached, then returns the recognised text.
func (l *Listener) Listen(ctx context.Context) (string, error) {
	if err := portaudio.Initialize(); err != nil {
		return "", fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	device, err := l.selectInputDevice()
	if err != nil {
		return "", err
	}
	l.localLogger.Info("using input device ", device.Name, " at ", device.DefaultSampleRate, "Hz")

	recorded, err := record(ctx, device, l.localLogger)
	if err != nil {
		return "", err
	}

	detector, err := NewSileroDetector(l.cfg.VADModel)
	if err != nil {
		return "", err
	}
	defer detector.Close()

	p := &Pipeline{Detector: detector, Recognizer: l.recognizer, DebugDir: l.cfg.DebugDir, localLogger: l.localLogger}
	return p.Transcribe(ctx, recorded, int(device.DefaultSampleRate))
}

func (l *Listener) selectInputDevice() (*portaudio.DeviceInfo, error) {
	if l.cfg.DeviceID < 0 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("find default device: %w", err)
		}
		return device, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}
	if l.cfg.DeviceID >= len(devices) {
		return nil, fmt.Errorf("no input device %d, %d available", l.cfg.DeviceID, len(devices))
	}
	return devices[l.cfg.DeviceID], nil
}

// record captures mono 16-bit audio from the first loud buffer until the
// volume stays below the threshold for sendToVADDelay.
func record(ctx context.Context, device *portaudio.DeviceInfo, log *logger.Logger) ([]int16, error) {
	in := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, device.DefaultSampleRate, len(in), &in)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("starting stream: %w", err)
	}
	defer stream.Stop()

	c := &capture{
		src:        stream,
		in:         in,
		minVolume:  minMicVolume,
		silence:    sendToVADDelay,
		maxSegment: maxSegmentDuration,
		log:        log,
	}
	return c.run(ctx)
}

type sampleReader interface {
	Read() error
}

// capture reads buffers from src into in and collects one utterance.
type capture struct {
	src        sampleReader
	in         []int16
	minVolume  float64
	silence    time.Duration
	maxSegment time.Duration
	log        *logger.Logger
}

// run returns once the speaker has been quiet for c.silence, or when
// c.maxSegment has passed. Read errors are retried until that deadline.
func (c *capture) run(ctx context.Context) ([]int16, error) {
	var (
		buffer        []int16
		started       time.Time
		lastLoud      time.Time
		readErr       error
		listeningFrom = time.Now()
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Since(listeningFrom) > c.maxSegment {
			switch {
			case len(buffer) > 0:
				return buffer, nil
			case readErr != nil:
				return nil, fmt.Errorf("reading from stream: %w", readErr)
			default:
				return nil, ErrNoSpeech
			}
		}

		if err := c.src.Read(); err != nil {
			if readErr == nil {
				c.log.Warn("reading from stream: ", err)
			}
			readErr = err
			continue
		}
		readErr = nil

		volume := calculateRMS16(c.in)
		if volume > c.minVolume {
			lastLoud = time.Now()
			if started.IsZero() {
				started = lastLoud
				c.log.Info("listening...")
			}
		}
		if started.IsZero() {
			continue
		}

		buffer = append(buffer, c.in...)
		if time.Since(lastLoud) >= c.silence || time.Since(started) >= c.maxSegment {
			return buffer, nil
		}
	}
}

// Pipeline turns recorded audio into text: resample, voice check, FLAC
// encode, recognize.
type Pipeline struct {
	// Detector may be nil to skip the voice check.
	Detector   VoiceDetector
	Recognizer *Recognizer
	DebugDir   string

	localLogger *logger.Logger
}

func (p *Pipeline) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	log := p.localLogger
	if log == nil {
		log = logger.NewLogger("speech")
	}

	// Silero accepts audio with SampleRate = 16000.
	clip := ResampleInt16(samples, sampleRate, SampleRate)
	if len(clip) == 0 {
		return "", ErrNoSpeech
	}

	if p.Detector != nil {
		start := time.Now()
		detected, err := p.Detector.DetectVoice(clip)
		if err != nil {
			return "", err
		}
		log.Info("voice detection took ", time.Since(start), ", detected: ", detected)
		if !detected {
			return "", ErrNoSpeech
		}
	}

	if p.DebugDir != "" {
		if err := saveWAV(p.DebugDir, clip); err != nil {
			log.Warn("keeping utterance: ", err)
		}
	}

	flacData, err := EncodeFLAC(clip, SampleRate)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, confidence, err := p.Recognizer.Recognize(ctx, flacData, SampleRate)
	if err != nil {
		return "", err
	}
	log.Infof("recognised in %s, confidence %.2f: %s", time.Since(start), confidence, text)
	return strings.TrimSpace(text), nil
}

func saveWAV(dir string, clip []int16) error {
	wavData, err := EncodeWAV(clip, SampleRate)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("utterance_%s.wav", time.Now().Format("20060102_150405"))
	return os.WriteFile(filepath.Join(dir, name), wavData, 0o644)
}
