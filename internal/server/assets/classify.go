package assets

import (
	"path"
	"strings"
)

// Class determines the caching policy of a served file.
type Class int

const (
	// GenericFile is any file that is neither under /assets nor HTML.
	GenericFile Class = iota
	// LongLivedImmutable files live under /assets and carry content hashes.
	LongLivedImmutable
	// HTMLDocument files are never cached.
	HTMLDocument
)

// ImmutablePrefix is the URL prefix of fingerprinted assets.
const ImmutablePrefix = "/assets"

// Cache-Control values per class.
const (
	CacheImmutable = "public, max-age=31536000, immutable"
	CacheNoStore   = "no-store"
	CacheGeneric   = "public, max-age=600"
)

func (c Class) String() string {
	switch c {
	case LongLivedImmutable:
		return "immutable"
	case HTMLDocument:
		return "html"
	default:
		return "generic"
	}
}

// CacheControl returns the Cache-Control header value for c.
func (c Class) CacheControl() string {
	switch c {
	case LongLivedImmutable:
		return CacheImmutable
	case HTMLDocument:
		return CacheNoStore
	default:
		return CacheGeneric
	}
}

// Classify returns the class for a request path and the name of the file
// it resolved to. The /assets prefix wins over the .html extension.
func Classify(urlPath, fileName string) Class {
	if HasPathPrefix(urlPath, ImmutablePrefix) {
		return LongLivedImmutable
	}
	if strings.EqualFold(path.Ext(fileName), ".html") {
		return HTMLDocument
	}
	return GenericFile
}

// HasPathPrefix reports whether urlPath equals prefix or continues it with
// a path segment. Comparison is case-insensitive: /Assets/x matches
// /assets but /assetsx does not.
func HasPathPrefix(urlPath, prefix string) bool {
	if len(urlPath) < len(prefix) || !strings.EqualFold(urlPath[:len(prefix)], prefix) {
		return false
	}
	return len(urlPath) == len(prefix) || urlPath[len(prefix)] == '/'
}
