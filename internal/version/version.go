// Package version holds build identification, overridden with -ldflags at release time
package version

// Version is the semantic version of the benchmark binary
var Version = "0.3.0"

// Commit is the git commit the binary was built from
var Commit = "none"
