package probe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	oggMagic      = "OggS"
	oggHeaderSize = 27
	// Opus granule positions always count 48kHz samples.
	opusSampleRate = 48000
	// How far back from EOF to look for the last page.
	oggTailSize = 64 * 1024
)

var errOggHeader = errors.New("ogg: bad identification header")

// readOgg reads the codec identification packet from the first page and the
// granule position of the last page. Vorbis and Opus streams are supported.
func readOgg(f *os.File) (*Info, error) {
	first := make([]byte, oggHeaderSize+255)
	n, err := io.ReadFull(f, first)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("ogg: %w", err)
	}
	first = first[:n]
	if len(first) < oggHeaderSize || string(first[:4]) != oggMagic {
		return nil, errOggHeader
	}

	segments := int(first[26])
	packetStart := oggHeaderSize + segments
	if _, err := f.Seek(int64(packetStart), io.SeekStart); err != nil {
		return nil, err
	}
	ident := make([]byte, 30)
	n, err = io.ReadFull(f, ident)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("ogg: %w", err)
	}
	ident = ident[:n]

	format, sampleRate, preSkip, err := parseOggIdent(ident)
	if err != nil {
		return nil, err
	}

	granule, err := lastGranule(f)
	if err != nil {
		return nil, err
	}
	return newInfo(format, sampleRate, granule-preSkip)
}

// parseOggIdent decodes a Vorbis or Opus identification packet.
func parseOggIdent(p []byte) (format string, sampleRate int, preSkip int64, err error) {
	switch {
	case len(p) >= 16 && bytes.HasPrefix(p, []byte("\x01vorbis")):
		// version(4) channels(1) rate(4)
		rate := binary.LittleEndian.Uint32(p[12:16])
		return FormatOgg, int(rate), 0, nil
	case len(p) >= 12 && bytes.HasPrefix(p, []byte("OpusHead")):
		// version(1) channels(1) pre-skip(2)
		skip := binary.LittleEndian.Uint16(p[10:12])
		return FormatOpus, opusSampleRate, int64(skip), nil
	}
	return "", 0, 0, errOggHeader
}

// lastGranule scans the tail of the stream backwards for the last page that
// carries a granule position.
func lastGranule(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}

	searchSize := min(int64(oggTailSize), fi.Size())
	if _, err := f.Seek(-searchSize, io.SeekEnd); err != nil {
		return 0, err
	}

	buf := make([]byte, searchSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, err
	}
	buf = buf[:n]

	for i := len(buf) - oggHeaderSize; i >= 0; i-- {
		// Stream structure version 0 tells a page header from payload bytes.
		if string(buf[i:i+4]) != oggMagic || buf[i+4] != 0 {
			continue
		}
		granule := int64(binary.LittleEndian.Uint64(buf[i+6 : i+14]))
		// -1 marks a page on which no packet completes.
		if granule > 0 {
			return granule, nil
		}
	}
	return 0, fmt.Errorf("ogg: %w", ErrNoAudio)
}
