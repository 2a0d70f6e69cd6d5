package pmerrors

import "github.com/juju/errors"

// ExitCode is the process exit status the single-device CLI maps a
// pmerrors cause to. Modeled on thiagojdb-adoctl/pkg/errors's ExitCode
// enum, but computed from juju/errors causes instead of a parallel
// wrapper hierarchy.
type ExitCode int

const (
	ExitOK         ExitCode = 0
	ExitOperational ExitCode = 1 // board/slot/device not found, or not in DownloadBoot
	ExitUsage       ExitCode = 2 // bad arguments, inconsistent file, security check failure
)

// ExitCodeFor maps err to the CLI exit code from spec §6: NotFound-flavored
// causes (board/device absent, board not in DownloadBoot) exit 1; every
// other recognized cause — ParseErr, SizeViolationErr, InconsistentErr —
// exits 2, the same bucket _run_security_checks's sys.exit(2) calls fall
// into. An unrecognized error also exits 2, since it indicates a usage or
// environment problem the CLI cannot characterize further.
func ExitCodeFor(err error) ExitCode {
	if err == nil {
		return ExitOK
	}
	if IsNotFound(err) {
		return ExitOperational
	}

	cause := errors.Cause(err)
	switch cause.(type) {
	case *ParseErr, *SizeViolationErr, *InconsistentErr:
		return ExitUsage
	}
	return ExitUsage
}
