// Package version holds the server version string.
package version

// Version is the current server version.
const Version = "0.1.0"
