package common

// Version is set at build time with -ldflags "-X .../common.Version=...".
var Version = "dev"

// PackageName prefixes metric names.
const PackageName = "wifi_portal"
