// Package buildinfo reports what binary is running. Release builds stamp
// the variables with -ldflags, for example
//
//	-X 'github.com/m3rciful/scenebot/core/buildinfo.Version=v1.2.3'
//
// and plain `go build` falls back to the VCS data embedded by the toolchain.
package buildinfo

import (
	"runtime/debug"
	"strings"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info is the resolved build identity.
type Info struct {
	Version string
	Commit  string
	Date    string
	Dirty   bool
}

// Get merges the stamped variables with the embedded VCS settings.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = fromSettings(info, bi.Settings)
	}
	if info.Commit == "" {
		info.Commit = "local"
	}
	return info
}

func fromSettings(info Info, settings []debug.BuildSetting) Info {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value[:min(len(s.Value), 12)]
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

// String renders "dev (abc123, dirty) built 2025-01-02T03:04:05Z".
func (i Info) String() string {
	var b strings.Builder
	b.WriteString(i.Version)
	b.WriteString(" (")
	b.WriteString(i.Commit)
	if i.Dirty {
		b.WriteString(", dirty")
	}
	b.WriteString(")")
	if i.Date != "" {
		b.WriteString(" built ")
		b.WriteString(i.Date)
	}
	return b.String()
}
