package relay

import "github.com/btcsuite/btclog/v2"

// log is the package-level structured logger used throughout relay. It
// defaults to a disabled logger so the package is silent until a caller
// wires up output via UseLogger, mirroring the logging convention used
// across this codebase's other baselib packages.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-level logger used by relay. Call this once
// during application startup, before creating a Supervisor, to attach
// structured log output.
func UseLogger(logger btclog.Logger) {
	log = logger
}
