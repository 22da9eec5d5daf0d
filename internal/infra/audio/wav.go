package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

type MicrophoneConfig struct {
	SampleRate       int
	SilenceThreshold int16
	// SilenceAfter ends a clip once speech has been followed by this much silence.
	SilenceAfter time.Duration
	MaxClip      time.Duration
}

func DefaultMicrophoneConfig() MicrophoneConfig {
	return MicrophoneConfig{
		SampleRate:       16000,
		SilenceThreshold: 500,
		SilenceAfter:     time.Second,
		MaxClip:          10 * time.Second,
	}
}

// EncodeWAV wraps 16-bit mono PCM samples in a RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	var buf bytes.Buffer

	dataSize := len(samples) * 2
	fileSize := 36 + dataSize

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, int32(fileSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, int32(16))
	binary.Write(&buf, binary.LittleEndian, int16(1))
	binary.Write(&buf, binary.LittleEndian, int16(1))
	binary.Write(&buf, binary.LittleEndian, int32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, int32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, int16(2))
	binary.Write(&buf, binary.LittleEndian, int16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, int32(dataSize))
	binary.Write(&buf, binary.LittleEndian, samples)

	return buf.Bytes()
}

func isSilent(frame []int16, threshold int16) bool {
	for _, sample := range frame {
		if sample > threshold || sample < -threshold {
			return false
		}
	}
	return true
}

// clipTracker decides when a recording is complete: after speech followed
// by enough silence, or when the clip reaches its maximum length.
type clipTracker struct {
	cfg         MicrophoneConfig
	samples     int
	silentRun   int
	heardSpeech bool
}

func (c *clipTracker) add(frame []int16) (done bool) {
	c.samples += len(frame)
	if isSilent(frame, c.cfg.SilenceThreshold) {
		c.silentRun += len(frame)
	} else {
		c.silentRun = 0
		c.heardSpeech = true
	}

	maxSamples := int(c.cfg.MaxClip.Seconds() * float64(c.cfg.SampleRate))
	silenceSamples := int(c.cfg.SilenceAfter.Seconds() * float64(c.cfg.SampleRate))

	if c.heardSpeech && c.silentRun >= silenceSamples {
		return true
	}
	return c.samples >= maxSamples
}

// ErrSilence is returned when a recording ended without any speech in it.
var ErrSilence = errors.New("no speech in recording")
