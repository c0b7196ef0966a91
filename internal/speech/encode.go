package speech

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
	"github.com/orcaman/writerseeker"
)

const flacBlockSize = 4096

// EncodeWAV wraps 16-bit mono samples in a WAV container.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	// Emulate a file in RAM so that we don't have to create a real file.
	file := &writerseeker.WriterSeeker{}
	encoder := wav.NewEncoder(file, sampleRate, 16, 1, 1)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		Data:           ConvertInt16ToInt(samples),
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}

	wavData, err := io.ReadAll(file.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading WAV data: %w", err)
	}
	return wavData, nil
}

// EncodeFLAC encodes 16-bit mono samples as a FLAC stream using verbatim
// subframes.
func EncodeFLAC(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to encode")
	}

	raw := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(s))
	}

	blockSize := min(flacBlockSize, len(samples))
	info := &meta.StreamInfo{
		BlockSizeMin:  uint16(blockSize),
		BlockSizeMax:  uint16(blockSize),
		SampleRate:    uint32(sampleRate),
		NChannels:     1,
		BitsPerSample: 16,
		NSamples:      uint64(len(samples)),
		MD5sum:        md5.Sum(raw),
	}

	buf := new(bytes.Buffer)
	enc, err := flac.NewEncoder(buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating FLAC encoder: %w", err)
	}

	for i, num := 0, uint64(0); i < len(samples); i, num = i+blockSize, num+1 {
		end := min(i+blockSize, len(samples))
		block := make([]int32, end-i)
		for j, s := range samples[i:end] {
			block[j] = int32(s)
		}

		f := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(len(block)),
				SampleRate:        uint32(sampleRate),
				Channels:          frame.ChannelsMono,
				BitsPerSample:     16,
				Num:               num,
			},
			Subframes: []*frame.Subframe{{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   block,
				NSamples:  len(block),
			}},
		}
		if err := enc.WriteFrame(f); err != nil {
			return nil, fmt.Errorf("writing FLAC frame: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing FLAC encoder: %w", err)
	}
	return buf.Bytes(), nil
}
