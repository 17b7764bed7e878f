package trajectory

import "runtime/debug"

// BuildInfo describes the running binary
type BuildInfo struct {
	Module    string `json:"module"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
}

// Info reads the module build information embedded by the Go toolchain.
func Info() BuildInfo {
	info := BuildInfo{Module: "github.com/leowmjw/go-temporal-trajectory", Version: "(devel)"}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	if bi.Main.Path != "" {
		info.Module = bi.Main.Path
	}
	if bi.Main.Version != "" {
		info.Version = bi.Main.Version
	}
	return info
}
