// Package probe reads audio container headers to find a stream's duration
// without decoding any samples.
package probe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Container formats recognized by Read.
const (
	FormatWAV   = "WAV"
	FormatFLAC  = "FLAC"
	FormatMP3   = "MP3"
	FormatOgg   = "OGG"
	FormatOpus  = "OPUS"
	FormatM4A   = "M4A"
	FormatOther = "OTHER"
)

var (
	// ErrUnrecognized is returned when no container parser accepts the file.
	ErrUnrecognized = errors.New("unrecognized container")
	// ErrNoAudio is returned when the container holds no usable audio track
	// (zero or unknown frame count, or no sample rate).
	ErrNoAudio = errors.New("no audio track")
)

// Info describes an audio stream as read from its container header.
type Info struct {
	Format     string
	SampleRate int
	// Frames is the number of inter-channel samples. Zero when the container
	// only reports a duration.
	Frames   int64
	Duration time.Duration
}

// Seconds returns the whole playback duration, truncated.
func (i *Info) Seconds() int {
	if i.Frames > 0 && i.SampleRate > 0 {
		return int(i.Frames / int64(i.SampleRate))
	}
	return int(i.Duration / time.Second)
}

func newInfo(format string, sampleRate int, frames int64) (*Info, error) {
	if sampleRate <= 0 || frames <= 0 {
		return nil, fmt.Errorf("%s: %w", format, ErrNoAudio)
	}
	return &Info{
		Format:     format,
		SampleRate: sampleRate,
		Frames:     frames,
		Duration:   framesToDuration(frames, sampleRate),
	}, nil
}

// framesToDuration splits frames into whole seconds and a remainder so that
// long streams do not overflow time.Duration during the multiplication.
func framesToDuration(frames int64, sampleRate int) time.Duration {
	rate := int64(sampleRate)
	whole := time.Duration(frames/rate) * time.Second
	return whole + time.Duration(frames%rate)*time.Second/time.Duration(rate)
}

// Read opens path and inspects its container header.
func Read(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, 12)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: %w", ErrUnrecognized)
		}
		return nil, err
	}
	head = head[:n]
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	format := sniff(f, head)
	var info *Info
	switch format {
	case FormatWAV:
		info, err = readWAV(f)
	case FormatFLAC:
		info, err = readFLAC(f)
	case FormatOgg:
		info, err = readOgg(f)
	case FormatM4A:
		info, err = readM4A(f)
	case FormatMP3:
		info, err = readMP3(f)
	default:
		return readOther(path)
	}
	if err == nil {
		return info, nil
	}

	// Dedicated readers reject valid variants (float WAV, ADTS behind an
	// MPEG sync word); taglib reads their headers.
	fallback, otherErr := readOther(path)
	if otherErr != nil {
		return nil, err
	}
	if format != FormatMP3 {
		fallback.Format = format
	}
	return fallback, nil
}

// Seconds returns the duration of the file at path in whole seconds.
func Seconds(path string) (int, error) {
	info, err := Read(path)
	if err != nil {
		return 0, err
	}
	return info.Seconds(), nil
}

// sniff identifies the container from its leading bytes. An ID3v2 tag in
// front of the stream is skipped to find FLAC or MPEG audio behind it.
func sniff(r io.ReadSeeker, head []byte) string {
	switch {
	case len(head) >= 12 && string(head[0:4]) == "RIFF" && string(head[8:12]) == "WAVE":
		return FormatWAV
	case bytes.HasPrefix(head, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(head, []byte("OggS")):
		return FormatOgg
	case len(head) >= 8 && string(head[4:8]) == "ftyp":
		return FormatM4A
	case isMPEGSync(head):
		return FormatMP3
	case bytes.HasPrefix(head, []byte(id3Magic)):
		format := FormatOther
		if err := skipID3v2(r); err == nil {
			next := make([]byte, 4)
			if _, err := io.ReadFull(r, next); err == nil {
				switch {
				case string(next) == "fLaC":
					format = FormatFLAC
				case isMPEGSync(next):
					format = FormatMP3
				}
			}
		}
		_, _ = r.Seek(0, io.SeekStart)
		return format
	}
	return FormatOther
}

func isMPEGSync(b []byte) bool {
	return len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0
}

// id3Magic is the magic bytes for ID3v2 header detection.
const id3Magic = "ID3"

// skipID3v2 skips an ID3v2 tag if present at the beginning of the stream.
func skipID3v2(r io.ReadSeeker) error {
	header := make([]byte, 10)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	if n < 10 || string(header[0:3]) != id3Magic {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}

	// ID3v2 size is stored as a syncsafe integer in bytes 6-9
	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
