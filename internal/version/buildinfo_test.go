package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromBuildInfo(t *testing.T) {
	t.Parallel()

	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
		},
	}

	tests := []struct {
		name string
		in   info
		want info
	}{
		{
			name: "defaults are filled",
			in:   info{version: "dev", commit: "none", date: "unknown"},
			want: info{version: "v1.4.0", commit: "0123456789ab", date: "2026-10-01T12:00:00Z"},
		},
		{
			name: "ldflags win",
			in:   info{version: "v2.0.0", commit: "abc", date: "today"},
			want: info{version: "v2.0.0", commit: "abc", date: "today"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, fromBuildInfo(tt.in, bi))
		})
	}
}

func TestFromBuildInfo_DevelIsIgnored(t *testing.T) {
	t.Parallel()

	got := fromBuildInfo(info{version: "dev", commit: "none", date: "unknown"}, &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
	})

	assert.Equal(t, "dev", got.version)
	assert.Equal(t, "none", got.commit)
}

func TestFromBuildInfo_NoVCSKeepsCommitAndDate(t *testing.T) {
	t.Parallel()

	got := fromBuildInfo(info{version: "dev", commit: "none", date: "unknown"}, &debug.BuildInfo{
		Main:     debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: ""}, {Key: "GOOS", Value: "windows"}},
	})

	assert.Equal(t, info{version: "v0.3.1", commit: "none", date: "unknown"}, got)
}

func TestAccessorsReportResolvedInfo(t *testing.T) {
	t.Parallel()

	i := resolved()
	assert.NotEmpty(t, i.version)
	assert.NotEmpty(t, i.commit)
	assert.NotEmpty(t, i.date)

	assert.Equal(t, i.version, GetVersion())
	assert.Equal(t, i.commit, GetCommit())
	assert.Equal(t, i.date, GetDate())
	assert.Equal(t, i.version+" (commit: "+i.commit+", built: "+i.date+")", GetFullVersion())
}
