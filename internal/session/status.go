package session

// Status is the lifecycle of the comparison request
type Status int

const (
	StatusIdle Status = iota
	StatusValidationFailed
	StatusLoading
	StatusLoaded
	StatusRequestFailed
)

func (s Status) String() string {
	switch s {
	case StatusValidationFailed:
		return "validationFailed"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusRequestFailed:
		return "requestFailed"
	default:
		return "idle"
	}
}

// MarshalText encodes the status by name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
