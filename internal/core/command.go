package core

// Command identifies a counted protocol command.
type Command int

const (
	// CommandAuth counts credential lines received during authentication.
	CommandAuth Command = iota
	// CommandName counts NAME proposals received during name negotiation.
	CommandName
	// CommandSay counts chat messages.
	CommandSay
	// CommandKick counts kick requests, found or not.
	CommandKick
	// CommandList counts roster requests.
	CommandList
	// CommandLeave counts explicit leaves.
	CommandLeave
)

func (c Command) String() string {
	switch c {
	case CommandAuth:
		return "AUTH"
	case CommandName:
		return "NAME"
	case CommandSay:
		return "SAY"
	case CommandKick:
		return "KICK"
	case CommandList:
		return "LIST"
	case CommandLeave:
		return "LEAVE"
	default:
		return "UNKNOWN"
	}
}

// SessionCounts holds the commands a single session issued.
type SessionCounts struct {
	Say  int `json:"say"`
	Kick int `json:"kick"`
	List int `json:"list"`
}

// ServerCounts holds the server-wide command totals.
type ServerCounts struct {
	Auth  int `json:"auth"`
	Name  int `json:"name"`
	Say   int `json:"say"`
	Kick  int `json:"kick"`
	List  int `json:"list"`
	Leave int `json:"leave"`
}

// SessionStats is a point-in-time copy of one session's counters.
type SessionStats struct {
	Name   string        `json:"name"`
	Counts SessionCounts `json:"counts"`
}

// Snapshot is a consistent copy of all registry counters.
type Snapshot struct {
	Sessions []SessionStats `json:"sessions"`
	Server   ServerCounts   `json:"server"`
}

func (c *ServerCounts) bump(cmd Command) {
	switch cmd {
	case CommandAuth:
		c.Auth++
	case CommandName:
		c.Name++
	case CommandSay:
		c.Say++
	case CommandKick:
		c.Kick++
	case CommandList:
		c.List++
	case CommandLeave:
		c.Leave++
	}
}

func (c *SessionCounts) bump(cmd Command) {
	switch cmd {
	case CommandSay:
		c.Say++
	case CommandKick:
		c.Kick++
	case CommandList:
		c.List++
	}
}
