package synth

// PlaybackState is the transport state of an engine
type PlaybackState uint32

const (
	Stopped PlaybackState = iota
	Playing
	Paused
)

func (s PlaybackState) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Playing:
		return "PLAYING"
	case Paused:
		return "PAUSED"
	}
	return "UNKNOWN"
}

// Command is a transport request issued from the control path
type Command uint8

const (
	CmdStart Command = iota
	CmdPause
	CmdResume
	CmdStop
)

// Apply returns the state reached by cmd and whether it was a valid
// transition. Invalid transitions leave the state unchanged.
func (s PlaybackState) Apply(cmd Command) (PlaybackState, bool) {
	switch {
	case cmd == CmdStart && s == Stopped:
		return Playing, true
	case cmd == CmdPause && s == Playing:
		return Paused, true
	case cmd == CmdResume && s == Paused:
		return Playing, true
	case cmd == CmdStop && (s == Playing || s == Paused):
		return Stopped, true
	}
	return s, false
}
