package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_Getters(t *testing.T) {
	tests := []struct {
		name    string
		ctx     *Context
		version string
		date    string
		commit  string
	}{
		{name: "nil context", ctx: nil, version: UnknownValue, date: UnknownValue, commit: UnknownValue},
		{name: "empty values", ctx: NewContext("", "", ""), version: UnknownValue, date: UnknownValue, commit: UnknownValue},
		{name: "populated", ctx: NewContext("1.4.0", "2026-10-01", "a1b2c3d"), version: "1.4.0", date: "2026-10-01", commit: "a1b2c3d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.version, tt.ctx.GetVersion())
			assert.Equal(t, tt.date, tt.ctx.GetBuildDate())
			assert.Equal(t, tt.commit, tt.ctx.GetCommit())
		})
	}
}

func TestContext_ReleaseAndString(t *testing.T) {
	ctx := NewContext("1.4.0", "2026-10-01", "a1b2c3d")
	assert.Equal(t, "firewatch@1.4.0", ctx.Release())
	assert.Equal(t, "FireWatch 1.4.0 (commit a1b2c3d, built 2026-10-01)", ctx.String())

	var empty *Context
	assert.Equal(t, "firewatch@unknown", empty.Release())
}
