package domain

import "fmt"

// Domain contains core models shared across the relay.

// Platform identifies the upstream content platform a post belongs to.
type Platform string

const (
	PlatformReddit Platform = "reddit"
)

// MediaRef points at a single downloadable image attached to a post.
// Ordinals are gap-free starting at 0 and fix the output ordering.
type MediaRef struct {
	URL     string
	Ordinal int
}

// Post is the normalized record an adapter produces for one upstream post.
// Author is empty when the upstream post is author-deleted; that is a valid
// state, not an error.
type Post struct {
	Platform  Platform
	SourceURL string
	Author    string
	Title     string
	MediaRefs []MediaRef
}

// TranscodedImage is one converted attachment ready for publication.
type TranscodedImage struct {
	Ordinal  int
	Bytes    []byte
	Filename string
}

// AttachmentFilename builds the deterministic output filename for an ordinal.
func AttachmentFilename(ordinal int, ext string) string {
	return fmt.Sprintf("image_%d.%s", ordinal, ext)
}

// allowedImageExtensions lists the MIME subtypes retained during media
// enumeration. Everything else (videos included) is silently dropped.
var allowedImageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
	"heic": true,
	"heif": true,
}

// AllowedImageExtension reports whether the given MIME subtype / file
// extension is one of the supported image formats.
func AllowedImageExtension(ext string) bool {
	return allowedImageExtensions[ext]
}
