package probe

import (
	"errors"
	"fmt"
	"os"

	goflac "github.com/go-flac/go-flac"
	"github.com/gopxl/beep/v2/wav"
	"github.com/llehouerou/go-m4a"
	"github.com/llehouerou/go-mp3"
	"go.senan.xyz/taglib"
)

// readWAV reads the RIFF fmt and data chunk headers. The frame count comes
// from the data chunk size.
func readWAV(f *os.File) (*Info, error) {
	streamer, format, err := wav.Decode(f)
	if err != nil {
		return nil, err
	}
	frames := int64(streamer.Len())
	_ = streamer.Close()

	return newInfo(FormatWAV, int(format.SampleRate), frames)
}

// readFLAC reads the STREAMINFO block. Only metadata blocks are parsed,
// frames are never touched.
func readFLAC(f *os.File) (*Info, error) {
	if err := skipID3v2(f); err != nil {
		return nil, err
	}

	file, err := goflac.ParseMetadata(f)
	if err != nil {
		return nil, fmt.Errorf("flac: %w", err)
	}
	if len(file.Meta) == 0 {
		return nil, fmt.Errorf("flac: %w", ErrNoAudio)
	}
	si, err := file.GetStreamInfo()
	if err != nil {
		return nil, fmt.Errorf("flac: %w", err)
	}

	// A zero sample count means "unknown" in STREAMINFO.
	return newInfo(FormatFLAC, si.SampleRate, si.SampleCount)
}

// readMP3 uses the decoder's frame index for the sample count.
func readMP3(f *os.File) (*Info, error) {
	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	sampleRate := decoder.SampleRate()
	if sampleRate == 0 {
		return nil, errors.New("mp3: invalid sample rate")
	}

	return newInfo(FormatMP3, sampleRate, int64(decoder.SampleCount()))
}

// readM4A reads the movie header of an MP4 container.
func readM4A(f *os.File) (*Info, error) {
	container, err := m4a.Open(f)
	if err != nil {
		return nil, fmt.Errorf("m4a: %w", err)
	}

	duration := container.Duration()
	if duration <= 0 {
		return nil, fmt.Errorf("m4a: %w", ErrNoAudio)
	}
	return &Info{
		Format:     FormatM4A,
		SampleRate: int(container.SampleRate()),
		Duration:   duration,
	}, nil
}

// readOther asks taglib for the stream length of containers without a
// dedicated parser (AIFF, WavPack, APE, ...).
func readOther(path string) (*Info, error) {
	props, err := taglib.ReadProperties(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnrecognized, err)
	}
	if props.Length <= 0 {
		return nil, ErrUnrecognized
	}
	return &Info{
		Format:   FormatOther,
		Duration: props.Length,
	}, nil
}
