// Package buildinfo carries build-time metadata that is not part of the user
// configuration.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Context holds values set through -ldflags at build time.
type Context struct {
	Version   string
	BuildDate string
	Commit    string
}

// NewContext returns a Context with the given values.
func NewContext(version, buildDate, commit string) *Context {
	return &Context{Version: version, BuildDate: buildDate, Commit: commit}
}

// GetVersion returns the version tag, or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date, or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// GetCommit returns the short commit hash, or UnknownValue.
func (c *Context) GetCommit() string {
	if c == nil || c.Commit == "" {
		return UnknownValue
	}
	return c.Commit
}

// Release is the identifier reported to error telemetry, e.g. "firewatch@1.4.0".
func (c *Context) Release() string {
	return "firewatch@" + c.GetVersion()
}

func (c *Context) String() string {
	return fmt.Sprintf("FireWatch %s (commit %s, built %s)", c.GetVersion(), c.GetCommit(), c.GetBuildDate())
}
