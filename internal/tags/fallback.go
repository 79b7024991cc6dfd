package tags

import (
	"github.com/bogem/id3v2/v2"
	"go.senan.xyz/taglib"
)

// readMP3WithID3v2 reads MP3 metadata using only the id3v2 library.
// This is used when dhowden/tag fails.
func readMP3WithID3v2(path string) (*fields, error) {
	id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, err
	}
	defer id3tag.Close()

	f := &fields{
		Title:    id3tag.Title(),
		Artist:   id3tag.Artist(),
		Album:    id3tag.Album(),
		Genre:    id3tag.Genre(),
		Composer: getID3TextFrame(id3tag, "TCOM"),
		Lyricist: getID3TextFrame(id3tag, "TEXT"),
		Track:    parseNumber(getID3TextFrame(id3tag, "TRCK")),
		Year:     parseYear(id3tag.Year()),
	}

	if frames := id3tag.GetFrames("COMM"); len(frames) > 0 {
		if cf, ok := frames[0].(id3v2.CommentFrame); ok {
			f.Comment = cf.Text
		}
	}

	return f, nil
}

// getID3TextFrame reads a text frame value from an ID3v2 tag.
func getID3TextFrame(id3tag *id3v2.Tag, frameID string) string {
	frames := id3tag.GetFrames(frameID)
	if len(frames) == 0 {
		return ""
	}
	if tf, ok := frames[0].(id3v2.TextFrame); ok {
		return tf.Text
	}
	return ""
}

// taglibTags wraps the map returned by taglib.ReadTags.
type taglibTags map[string][]string

// get returns the first value for any of the given keys, or empty string if not found.
func (t taglibTags) get(keys ...string) string {
	for _, key := range keys {
		if values, ok := t[key]; ok && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// readWithTaglib reads metadata using TagLib for containers dhowden/tag
// cannot parse.
func readWithTaglib(path string) (*fields, error) {
	rawTags, err := taglib.ReadTags(path)
	if err != nil {
		return nil, err
	}
	tags := taglibTags(rawTags)

	return &fields{
		Title:    tags.get(taglib.Title),
		Artist:   tags.get(taglib.Artist),
		Album:    tags.get(taglib.Album),
		Genre:    tags.get(taglib.Genre),
		Composer: tags.get("COMPOSER"),
		Lyricist: tags.get("LYRICIST"),
		Comment:  tags.get("COMMENT"),
		Track:    parseNumber(tags.get(taglib.TrackNumber)),
		Year:     parseYear(tags.get(taglib.Date)),
	}, nil
}
