package controller

// Command is a transport action bound to a key.
type Command int

const (
	CmdNone Command = iota
	CmdPlayPause
	CmdStop
	CmdNext
	CmdPrevious
	CmdSeekBack
	CmdSeekForward
	CmdToggleShuffle
	CmdToggleLoop
	CmdRemoveCurrent
	CmdQuit
)

// String returns the string representation of the command.
func (c Command) String() string {
	switch c {
	case CmdPlayPause:
		return "play_pause"
	case CmdStop:
		return "stop"
	case CmdNext:
		return "next"
	case CmdPrevious:
		return "previous"
	case CmdSeekBack:
		return "seek_back"
	case CmdSeekForward:
		return "seek_forward"
	case CmdToggleShuffle:
		return "toggle_shuffle"
	case CmdToggleLoop:
		return "toggle_loop"
	case CmdRemoveCurrent:
		return "remove_current"
	case CmdQuit:
		return "quit"
	default:
		return "none"
	}
}

var keyCommands = map[byte]Command{
	' ':  CmdPlayPause,
	's':  CmdStop,
	'n':  CmdNext,
	'p':  CmdPrevious,
	',':  CmdSeekBack,
	'.':  CmdSeekForward,
	'r':  CmdToggleShuffle,
	'l':  CmdToggleLoop,
	'x':  CmdRemoveCurrent,
	'q':  CmdQuit,
	0x03: CmdQuit, // Ctrl+C (raw mode swallows SIGINT)
}

// ParseKeys maps a chunk of raw terminal input to commands. Arrow keys
// arrive as ESC [ A..D and map to previous/next/seek.
func ParseKeys(buf []byte) []Command {
	var cmds []Command
	for i := 0; i < len(buf); i++ {
		if buf[i] == 0x1b && i+2 < len(buf) && buf[i+1] == '[' {
			switch buf[i+2] {
			case 'A':
				cmds = append(cmds, CmdPrevious)
			case 'B':
				cmds = append(cmds, CmdNext)
			case 'C':
				cmds = append(cmds, CmdSeekForward)
			case 'D':
				cmds = append(cmds, CmdSeekBack)
			}
			i += 2
			continue
		}
		if cmd, ok := keyCommands[buf[i]]; ok {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}
