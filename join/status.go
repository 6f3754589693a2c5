package join

// Status is the user-visible state of a join session. The string values are
// part of the UI wire contract and are persisted by the overlay; they must
// never be renamed.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusConnecting Status = "connecting"
	StatusJoined     Status = "joined"
	StatusCancelled  Status = "cancelled"
	StatusMissing    Status = "missing"
)

// Terminal reports whether a session in this status has finished.
func (s Status) Terminal() bool {
	return s == StatusJoined || s == StatusCancelled
}
