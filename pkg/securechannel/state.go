package securechannel

// State is one of the Secure Channel state machine's states, per §4.5.
type State int

const (
	// StateConnectingTransport is the initial state: the transport is
	// not yet known to be usable.
	StateConnectingTransport State = iota
	// StateConnectingSecure is entered once the transport is up; an
	// OpenSecureChannel request/response exchange is in flight.
	StateConnectingSecure
	// StateConnected is entered once a security token and key sets are
	// installed; symmetric messages may be sent and received.
	StateConnected
	// StateDisconnecting is entered while a CloseSecureChannel exchange
	// is in flight.
	StateDisconnecting
	// StateDisconnected is a terminal state: the transport is closed.
	StateDisconnected
	// StateError is a terminal state reached on any unrecoverable
	// protocol violation (§4.7).
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnectingTransport:
		return "ConnectingTransport"
	case StateConnectingSecure:
		return "ConnectingSecure"
	case StateConnected:
		return "Connected"
	case StateDisconnecting:
		return "Disconnecting"
	case StateDisconnected:
		return "Disconnected"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// SecurityMode selects which protections a channel applies to its
// messages, per the GLOSSARY.
type SecurityMode int

const (
	SecurityModeNone SecurityMode = iota
	SecurityModeSign
	SecurityModeSignAndEncrypt
)

func (m SecurityMode) String() string {
	switch m {
	case SecurityModeNone:
		return "None"
	case SecurityModeSign:
		return "Sign"
	case SecurityModeSignAndEncrypt:
		return "SignAndEncrypt"
	default:
		return "Unknown"
	}
}
