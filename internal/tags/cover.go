package tags

import (
	"os"
	"path/filepath"
	"strings"
)

// Common cover art filenames to look for in album folders.
var coverArtFilenames = []string{
	"cover.jpg", "cover.jpeg", "cover.png",
	"folder.jpg", "folder.jpeg", "folder.png",
	"album.jpg", "album.jpeg", "album.png",
	"front.jpg", "front.jpeg", "front.png",
	"artwork.jpg", "artwork.jpeg", "artwork.png",
}

// FolderArt returns the path of the first common cover image found next to
// the audio file at path, or "" when there is none.
func FolderArt(path string) string {
	return findFolderArt(filepath.Dir(path))
}

// findFolderArt looks for common cover art files in the given directory.
func findFolderArt(dir string) string {
	for _, filename := range coverArtFilenames {
		for _, name := range []string{filename, strings.ToUpper(filename)} {
			imgPath := filepath.Join(dir, name)
			if fi, err := os.Stat(imgPath); err == nil && fi.Mode().IsRegular() {
				return imgPath
			}
		}
	}
	return ""
}
