package version

// Version is the toolflow release version, overridable at build time via
// -ldflags "-X toolflow/internal/version.Version=...".
var Version = "0.3.0"
