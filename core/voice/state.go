package voice

// State of the voice session.
type State int

const (
	Offline State = iota
	Connecting
	Online
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Online:
		return "online"
	default:
		return "offline"
	}
}

// Event drives State transitions.
type Event int

const (
	EventStart Event = iota
	EventMicFailed
	EventSocketOpen
	EventTranscript
	EventFinalTranscript
	EventInactivity
	EventStop
	EventSocketClosed
	EventSocketError
)

// next is the transition function. Unknown pairs leave the state as is.
func next(s State, ev Event) State {
	switch ev {
	case EventStop, EventSocketClosed, EventSocketError:
		return Offline
	}
	switch s {
	case Offline:
		if ev == EventStart {
			return Connecting
		}
	case Connecting:
		switch ev {
		case EventMicFailed:
			return Offline
		case EventSocketOpen:
			return Online
		}
	case Online:
		switch ev {
		case EventFinalTranscript, EventInactivity:
			return Offline
		}
	}
	return s
}

// Notice is a user-facing problem raised by the pipeline.
type Notice int

const (
	NoticeMicrophone Notice = iota + 1
	NoticeConnection
)

func (n Notice) String() string {
	switch n {
	case NoticeMicrophone:
		return "microphone unavailable"
	case NoticeConnection:
		return "could not reach the transcription service"
	default:
		return "unknown"
	}
}
