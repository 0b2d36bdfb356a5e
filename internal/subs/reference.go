package subs

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Reference is a parsed subtitle source. It is a closed union; all string
// sniffing of the player's raw subtitle info happens once, in
// ParseReference, and never downstream.
type Reference interface {
	isReference()
}

// LocalPath points at a subtitle file on disk.
type LocalPath struct {
	Path string
}

// RemoteURL points at a subtitle document fetched over HTTP.
type RemoteURL struct {
	URL string
}

// EmbeddedTrack identifies a subtitle stream muxed into the media
// container. It must be extracted before parsing.
type EmbeddedTrack struct {
	TrackID string
	Codec   string
}

// EDLWrappedURL is a remote subtitle hidden inside an edit-decision-list
// style wrapper path. Streaming frontends hand mpv these for web video;
// the inner URL is what actually gets fetched.
type EDLWrappedURL struct {
	URL string
}

func (LocalPath) isReference()     {}
func (RemoteURL) isReference()     {}
func (EmbeddedTrack) isReference() {}
func (EDLWrappedURL) isReference() {}

// ParseReference turns the raw subtitle info reported by the player into a
// Reference. The raw forms are: "<track>*<codec>" for embedded tracks,
// "edl://...http<url>" for wrapped web subtitles, bare http(s) URLs,
// file: URIs (drag & drop on some systems) and plain paths.
func ParseReference(raw string) (Reference, error) {
	if strings.Contains(raw, "*") {
		parts := strings.Split(raw, "*")
		if len(parts) != 2 {
			return nil, loadErrorf(FailureBadReference, fmt.Sprintf("Unknown subtitle info %q.", raw))
		}
		return EmbeddedTrack{TrackID: parts[0], Codec: parts[1]}, nil
	}

	path := cleanLocalURI(raw)

	if strings.HasPrefix(path, "edl://") {
		if i := strings.LastIndex(path, "http"); i >= 0 {
			return EDLWrappedURL{URL: path[i:]}, nil
		}
		// No embedded URL; fall through as a (nonexistent) local path so
		// the resolver reports the missing file.
		return LocalPath{Path: path}, nil
	}

	if strings.HasPrefix(path, "http") {
		return RemoteURL{URL: path}, nil
	}

	return LocalPath{Path: path}, nil
}

// cleanLocalURI converts a file: URI to a native filesystem path and leaves
// anything else untouched.
func cleanLocalURI(path string) string {
	if !strings.HasPrefix(path, "file:") {
		return path
	}
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	p := u.Path
	// Windows file URIs carry a leading slash before the drive letter.
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p)
}
