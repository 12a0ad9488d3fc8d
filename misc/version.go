// Package misc holds build time information.
package misc

// These are set by the linker, see build flags.
var (
	appName = "dxt"
	version = "dev"
	gitHash = "unknown"
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}
