package chat

// State is a step of a user turn.
type State int32

const (
	StateIdle State = iota
	StateSending
	StateAwaitingRemote
	StateRemoteOK
	StateRemoteFailed
	StateLocalFallback
	StateRendered
)

var stateNames = map[State]string{
	StateIdle:           "idle",
	StateSending:        "sending",
	StateAwaitingRemote: "awaiting_remote",
	StateRemoteOK:       "remote_ok",
	StateRemoteFailed:   "remote_failed",
	StateLocalFallback:  "local_fallback",
	StateRendered:       "rendered",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
