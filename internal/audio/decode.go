package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// pcmSource yields interleaved 16-bit samples from a decoded file
type pcmSource interface {
	// Read fills dst and returns the number of samples written; io.EOF at the end
	Read(dst []int16) (int, error)
	Channels() int
	SampleRate() int
	Close() error
}

// openSource picks a decoder by file extension
func openSource(path string) (pcmSource, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "wav":
		return openWAV(path)
	case "mp3":
		return openMP3(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// wavSource decodes PCM WAV files
type wavSource struct {
	file     *os.File
	decoder  *wav.Decoder
	buf      *goaudio.IntBuffer
	bitDepth int
	channels int
	rate     int
}

func openWAV(path string) (*wavSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}
	if err := decoder.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to seek to PCM data: %w", err)
	}

	format := decoder.Format()
	bitDepth := int(decoder.SampleBitDepth())
	if bitDepth == 0 || format == nil || format.NumChannels == 0 {
		f.Close()
		return nil, fmt.Errorf("unknown WAV format: %s", path)
	}

	return &wavSource{
		file:     f,
		decoder:  decoder,
		buf:      &goaudio.IntBuffer{Format: format, SourceBitDepth: bitDepth},
		bitDepth: bitDepth,
		channels: format.NumChannels,
		rate:     format.SampleRate,
	}, nil
}

func (s *wavSource) Read(dst []int16) (int, error) {
	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}
	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil {
		return 0, fmt.Errorf("failed to decode WAV: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		dst[i] = toInt16(s.buf.Data[i], s.bitDepth)
	}
	return n, nil
}

func (s *wavSource) Channels() int   { return s.channels }
func (s *wavSource) SampleRate() int { return s.rate }
func (s *wavSource) Close() error    { return s.file.Close() }

// toInt16 rescales a sample of the given bit depth to 16 bits
func toInt16(v, bitDepth int) int16 {
	switch {
	case bitDepth == 8:
		// 8-bit WAV is unsigned
		return int16((v - 128) << 8)
	case bitDepth > 16:
		return int16(v >> (bitDepth - 16))
	default:
		return int16(v)
	}
}

// mp3Source decodes MP3 files; go-mp3 always yields 16-bit stereo
type mp3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	raw     []byte
}

func openMP3(path string) (*mp3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("invalid MP3 file %s: %w", path, err)
	}

	return &mp3Source{file: f, decoder: decoder}, nil
}

func (s *mp3Source) Read(dst []int16) (int, error) {
	need := len(dst) * 2
	if cap(s.raw) < need {
		s.raw = make([]byte, need)
	}
	s.raw = s.raw[:need]

	n, err := io.ReadFull(s.decoder, s.raw)
	samples := n / 2
	for i := 0; i < samples; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(s.raw[i*2:]))
	}

	switch err {
	case nil, io.ErrUnexpectedEOF:
		// A short read is the tail; the next call reports io.EOF
		return samples, nil
	case io.EOF:
		return 0, io.EOF
	default:
		return samples, fmt.Errorf("failed to decode MP3: %w", err)
	}
}

func (s *mp3Source) Channels() int   { return 2 }
func (s *mp3Source) SampleRate() int { return s.decoder.SampleRate() }
func (s *mp3Source) Close() error    { return s.file.Close() }
