// Package assets resolves request paths to files of the static bundle and
// serves them with class-dependent caching and fixed security headers.
//
// Files are opened through an os.Root, so requests can never reach outside
// the content root, including via symlinks. Dot-prefixed path segments are
// treated as absent.
package assets
