// Package wav reads and writes minimal RIFF/WAVE containers.
//
// Only uncompressed PCM (format tag 1) is supported, which is what the
// speech backends produce. The parser walks the chunk list instead of
// assuming a fixed 44-byte layout, so files carrying extra chunks such
// as LIST or fact still load.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrNotWAV indicates the data is not a RIFF/WAVE container.
var ErrNotWAV = errors.New("not a RIFF/WAVE file")

// ErrNotPCM indicates the file uses an encoding other than uncompressed PCM.
var ErrNotPCM = errors.New("unsupported WAV encoding, expected PCM")

// ErrTruncated indicates the data ends before a declared chunk does.
var ErrTruncated = errors.New("truncated WAV data")

// ErrFormatMismatch indicates segments with different sample formats were joined.
var ErrFormatMismatch = errors.New("WAV segments have different sample formats")

// ErrNoSegments indicates a join was attempted with no input segments.
var ErrNoSegments = errors.New("no segments to join")

const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	fmtChunkSize    = 16
	riffOverhead    = 36
	pcmFormatTag    = 1
	bitsPerByte     = 8
)

// Format describes the sample layout of a PCM stream.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// ByteRate returns the number of PCM bytes per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / bitsPerByte
}

// File is a decoded WAV container: the sample format plus the raw PCM payload.
type File struct {
	Format Format
	PCM    []byte
}

// Duration returns the play time of the PCM payload.
func (f File) Duration() time.Duration {
	byteRate := f.Format.ByteRate()
	if byteRate <= 0 {
		return 0
	}

	return time.Duration(len(f.PCM)) * time.Second / time.Duration(byteRate)
}

// Decode parses WAV data into its format and PCM payload.
func Decode(data []byte) (File, error) {
	if len(data) < riffHeaderSize {
		return File{}, fmt.Errorf("%w: %d bytes", ErrNotWAV, len(data))
	}

	if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return File{}, ErrNotWAV
	}

	var (
		format   Format
		pcm      []byte
		foundFmt bool
	)

	offset := riffHeaderSize
	for offset+chunkHeaderSize <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + chunkHeaderSize

		if body+chunkSize > len(data) {
			return File{}, fmt.Errorf("%w: chunk %q declares %d bytes", ErrTruncated, chunkID, chunkSize)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < fmtChunkSize {
				return File{}, fmt.Errorf("%w: fmt chunk too short", ErrTruncated)
			}

			formatTag := binary.LittleEndian.Uint16(data[body : body+2])
			if formatTag != pcmFormatTag {
				return File{}, fmt.Errorf("%w: format tag %d", ErrNotPCM, formatTag)
			}

			format.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			format.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			foundFmt = true
		case "data":
			pcm = data[body : body+chunkSize]
		}

		// Chunks are word aligned; odd sizes carry a padding byte.
		offset = body + chunkSize + chunkSize%2
	}

	if !foundFmt {
		return File{}, fmt.Errorf("%w: missing fmt chunk", ErrNotWAV)
	}

	if pcm == nil {
		return File{}, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
	}

	return File{Format: format, PCM: pcm}, nil
}

// Duration returns the play time of WAV data.
func Duration(data []byte) (time.Duration, error) {
	file, err := Decode(data)
	if err != nil {
		return 0, err
	}

	return file.Duration(), nil
}

// FromPCM wraps raw PCM data in a WAV container.
func FromPCM(pcm []byte, format Format) []byte {
	dataLen := len(pcm)
	bytesPerSample := format.BitsPerSample / bitsPerByte

	buf := &bytes.Buffer{}
	buf.Grow(riffHeaderSize + 2*chunkHeaderSize + fmtChunkSize + dataLen)

	// RIFF header
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(riffOverhead+dataLen))
	buf.WriteString("WAVE")

	// fmt subchunk
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(fmtChunkSize))
	_ = binary.Write(buf, binary.LittleEndian, uint16(pcmFormatTag))
	_ = binary.Write(buf, binary.LittleEndian, uint16(format.Channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(format.SampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(format.ByteRate()))
	_ = binary.Write(buf, binary.LittleEndian, uint16(format.Channels*bytesPerSample))
	_ = binary.Write(buf, binary.LittleEndian, uint16(format.BitsPerSample))

	// data subchunk
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)

	return buf.Bytes()
}

// Joiner concatenates WAV segments into a single file.
//
// Every segment must share one sample format. The backends synthesize a
// whole track with a single voice configuration per language, so a
// mismatch means the caller mixed outputs from different servers.
type Joiner struct{}

// Join decodes each segment, concatenates the PCM payloads in order and
// re-wraps the result in a fresh container.
func (Joiner) Join(segments [][]byte) ([]byte, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	var (
		format Format
		pcm    bytes.Buffer
	)

	for i, segment := range segments {
		file, err := Decode(segment)
		if err != nil {
			return nil, fmt.Errorf("failed to decode segment %d: %w", i, err)
		}

		if i == 0 {
			format = file.Format
		} else if file.Format != format {
			return nil, fmt.Errorf("%w: segment %d has %+v, expected %+v",
				ErrFormatMismatch, i, file.Format, format)
		}

		pcm.Write(file.PCM)
	}

	return FromPCM(pcm.Bytes(), format), nil
}
