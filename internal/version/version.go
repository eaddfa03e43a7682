// Package version holds the release version.
package version

// Version is the release of the wiki-wanted tools
const Version = "0.3.0"
