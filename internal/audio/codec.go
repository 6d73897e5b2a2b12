package audio

import (
	"encoding/base64"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// Output format of the synthesized speech delivered by the server.
const (
	HeaderSize        = 44
	DefaultSampleRate = 44100
	DefaultChannels   = 1
	DefaultBitDepth   = 16
)

// DecodeFragment decodes one base64 audio fragment.
func DecodeFragment(fragment string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(fragment)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedFragment, err.Error())
	}
	return b, nil
}

// SynthesizeHeader builds the canonical 44-byte RIFF/WAVE header for pcmLen
// bytes of little-endian linear PCM.
func SynthesizeHeader(pcmLen, sampleRate, channels, bitDepth int) []byte {
	blockAlign := channels * bitDepth / 8
	byteRate := sampleRate * blockAlign

	h := make([]byte, HeaderSize)
	le := binary.LittleEndian

	copy(h[0:4], "RIFF")
	le.PutUint32(h[4:8], uint32(36+pcmLen))
	copy(h[8:12], "WAVE")

	copy(h[12:16], "fmt ")
	le.PutUint32(h[16:20], 16) // fmt chunk size for PCM
	le.PutUint16(h[20:22], 1)  // format tag: linear PCM
	le.PutUint16(h[22:24], uint16(channels))
	le.PutUint32(h[24:28], uint32(sampleRate))
	le.PutUint32(h[28:32], uint32(byteRate))
	le.PutUint16(h[32:34], uint16(blockAlign))
	le.PutUint16(h[34:36], uint16(bitDepth))

	copy(h[36:40], "data")
	le.PutUint32(h[40:44], uint32(pcmLen))

	return h
}

// HeaderDataLength reads the data-chunk length declared by a canonical header.
func HeaderDataLength(header []byte) (int, error) {
	if len(header) < HeaderSize {
		return 0, errors.Errorf("header too short: %d bytes", len(header))
	}
	return int(binary.LittleEndian.Uint32(header[40:44])), nil
}

// StripEmbeddedHeader drops the header the upstream synthesizer prepends to
// the first fragment of a turn. The header is assumed to be exactly
// HeaderSize bytes; it is not parsed or verified.
func StripEmbeddedHeader(fragment []byte, isFirst bool) []byte {
	if !isFirst {
		return fragment
	}
	if len(fragment) <= HeaderSize {
		return fragment[:0]
	}
	return fragment[HeaderSize:]
}

// FloatToPCM16 converts float samples to 16-bit PCM. Samples are clipped to
// [-1, 1]; negative values scale by 32768 and positive values by 32767.
func FloatToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		if s < 0 {
			out[i] = int16(s * 0x8000)
		} else {
			out[i] = int16(s * 0x7fff)
		}
	}
	return out
}

// PCM16Bytes serializes samples as little-endian bytes.
func PCM16Bytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// Assemble reconstructs one playable container from the fragments of a
// turn: the embedded header of fragment 0 is stripped, all PCM is
// concatenated in arrival order and a canonical header sized to the result
// is prepended. It returns the container and the PCM byte count.
func Assemble(fragments []string) ([]byte, int, error) {
	parts := make([][]byte, 0, len(fragments))
	total := 0
	for i, f := range fragments {
		b, err := DecodeFragment(f)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "fragment %d", i)
		}
		pcm := StripEmbeddedHeader(b, i == 0)
		parts = append(parts, pcm)
		total += len(pcm)
	}

	wav := make([]byte, 0, HeaderSize+total)
	wav = append(wav, SynthesizeHeader(total, DefaultSampleRate, DefaultChannels, DefaultBitDepth)...)
	for _, p := range parts {
		wav = append(wav, p...)
	}
	return wav, total, nil
}

// PCMDuration is the playback time of pcmLen bytes at the given format.
func PCMDuration(pcmLen, sampleRate, channels, bitDepth int) time.Duration {
	bytesPerSecond := sampleRate * channels * bitDepth / 8
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(float64(pcmLen) / float64(bytesPerSecond) * float64(time.Second))
}
