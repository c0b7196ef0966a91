package speech

import (
	"fmt"

	silero "github.com/streamer45/silero-vad-go/speech"
)

// VoiceDetector reports whether a 16kHz mono clip contains speech.
type VoiceDetector interface {
	DetectVoice(samples []int16) (bool, error)
	Close() error
}

// SileroDetector is the silero VAD model run through onnxruntime.
// See https://github.com/snakers4/silero-vad
type SileroDetector struct {
	detector *silero.Detector
}

func NewSileroDetector(modelPath string) (*SileroDetector, error) {
	d, err := silero.NewDetector(silero.DetectorConfig{
		ModelPath:            modelPath,
		SampleRate:           SampleRate,
		Threshold:            0.5,
		MinSilenceDurationMs: 100,
		SpeechPadMs:          30,
	})
	if err != nil {
		return nil, fmt.Errorf("create silero detector: %w", err)
	}
	return &SileroDetector{detector: d}, nil
}

func (s *SileroDetector) DetectVoice(samples []int16) (bool, error) {
	segments, err := s.detector.Detect(ConvertInt16ToFloat32(samples))
	if err != nil {
		return false, fmt.Errorf("detect voice: %w", err)
	}
	if err := s.detector.Reset(); err != nil {
		return false, fmt.Errorf("reset detector: %w", err)
	}
	return len(segments) > 0, nil
}

func (s *SileroDetector) Close() error {
	return s.detector.Destroy()
}
