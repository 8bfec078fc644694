package slots

type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusReserved  Status = "RESERVED"
	// StatusReleased marks a completed session. Terminal: never reserved again.
	StatusReleased Status = "RELEASED"
)

// IsValid checks if the slot status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusReleased:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsBookable reports whether a reservation may claim the slot
func (s Status) IsBookable() bool {
	return s == StatusAvailable
}
