package models

// UpdateState represents where the consumer-side engine currently is in
// the check / download / install lifecycle. Transient, process lifetime
// only; mutated exclusively by the update engine.
type UpdateState string

const (
	// StateIdle means no update activity is in progress
	StateIdle UpdateState = "idle"
	// StateChecking means the release channel is being queried
	StateChecking UpdateState = "checking"
	// StateUpdateAvailable means a newer version's manifest is known
	StateUpdateAvailable UpdateState = "update_available"
	// StateDownloading means update assets are being fetched
	StateDownloading UpdateState = "downloading"
	// StateDownloaded means all assets are staged and verified
	StateDownloaded UpdateState = "downloaded"
	// StateInstalling means the install tree is being mutated
	StateInstalling UpdateState = "installing"
	// StateInstalled means the update completed and was verified
	StateInstalled UpdateState = "installed"
	// StateFailed means the last operation failed
	StateFailed UpdateState = "failed"
)

// String returns the state name
func (s UpdateState) String() string {
	return string(s)
}
