package remote

import (
	"fmt"
	"strings"
)

const remotePrefix = "frame_"

// FrameID is the 1-based, zero padded id of a frame index: 7 -> "0008".
func FrameID(index int) string {
	return fmt.Sprintf("%04d", index+1)
}

// RemoteName is the remote name of a frame index: 7 -> "frame_0008".
func RemoteName(index int) string {
	return remotePrefix + FrameID(index)
}

// ModulePath joins a remote name and an export.
func ModulePath(remoteName, export string) string {
	return remoteName + "/" + export
}

// SplitModulePath splits "<remote>/<export>".
func SplitModulePath(path string) (remoteName, export string, err error) {
	remoteName, export, ok := strings.Cut(path, "/")
	if !ok || remoteName == "" || export == "" || strings.Contains(export, "/") {
		return "", "", fmt.Errorf("invalid module path %q", path)
	}
	return remoteName, export, nil
}

// EntryTemplate resolves entry locations for frames. The template may use
// {id} (0008), {name} (frame_0008) and {v} (the cache-bust value).
type EntryTemplate struct {
	Template  string
	CacheBust string
}

// Location returns the entry location of a frame index.
func (t EntryTemplate) Location(index int) string {
	r := strings.NewReplacer(
		"{id}", FrameID(index),
		"{name}", RemoteName(index),
		"{v}", t.CacheBust,
	)
	return r.Replace(t.Template)
}

// Descriptor returns the remote descriptor of a frame index.
func (t EntryTemplate) Descriptor(index int) Descriptor {
	return Descriptor{Name: RemoteName(index), EntryLocation: t.Location(index)}
}
