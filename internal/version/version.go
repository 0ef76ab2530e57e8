package version

// Version is the application version, set at build time via
// -ldflags "-X soundsgood/internal/version.Version=...".
var Version = "0.1.0"
