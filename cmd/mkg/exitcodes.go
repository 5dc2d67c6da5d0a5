package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (no repository, invalid config or scenario)
	ExitDataError   = 3 // Data error (malformed records, validation failure)
	ExitNotFound    = 4 // Identifier did not resolve
	ExitSimFailed   = 5 // Simulation finished without an optimal/ok status
)
