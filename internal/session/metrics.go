// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package session

// Recorder receives outcome counts from a Manager.
type Recorder interface {
	LoginResult(result string)
	BootstrapOutcome(outcome string)
	LogoutRemote(result string)
}

// Outcome labels passed to a Recorder.
const (
	ResultSuccess            = "success"
	ResultInvalidCredentials = "invalid_credentials"
	ResultError              = "error"

	OutcomeValid    = "valid"
	OutcomeAbsent   = "absent"
	OutcomeInvalid  = "invalid"
	OutcomeExpired  = "expired"
	OutcomeInactive = "inactive"
	OutcomeError    = "error"

	RemoteDeleted = "deleted"
	RemoteMissing = "missing"
	RemoteFailed  = "failed"
	RemoteSkipped = "skipped"
)

type nopRecorder struct{}

func (nopRecorder) LoginResult(string)      {}
func (nopRecorder) BootstrapOutcome(string) {}
func (nopRecorder) LogoutRemote(string)     {}
