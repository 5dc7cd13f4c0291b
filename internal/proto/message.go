package proto

import (
	"errors"
	"strings"
)

// Tag identifies a protocol line. It is the text before the first colon.
type Tag string

const (
	TagAuth      Tag = "AUTH"
	TagWho       Tag = "WHO"
	TagName      Tag = "NAME"
	TagNameTaken Tag = "NAME_TAKEN"
	TagOK        Tag = "OK"
	TagEnter     Tag = "ENTER"
	TagLeave     Tag = "LEAVE"
	TagMsg       Tag = "MSG"
	TagList      Tag = "LIST"
	TagKick      Tag = "KICK"
	TagSay       Tag = "SAY"

	// TagUnknown is returned by Decode for tags outside the protocol.
	TagUnknown Tag = ""
)

const separator = ":"

var knownTags = map[Tag]struct{}{
	TagAuth:      {},
	TagWho:       {},
	TagName:      {},
	TagNameTaken: {},
	TagOK:        {},
	TagEnter:     {},
	TagLeave:     {},
	TagMsg:       {},
	TagList:      {},
	TagKick:      {},
	TagSay:       {},
}

// ErrNoSeparator is returned for lines that carry no tag separator.
var ErrNoSeparator = errors.New("line has no tag separator")

// Message is a decoded protocol line.
type Message struct {
	Tag     Tag
	Payload string
	// Raw holds the tag text as received, useful for logging unknown tags.
	Raw string
}

// Decode splits a line (without its trailing newline) into tag and payload.
func Decode(line string) (Message, error) {
	raw, payload, ok := strings.Cut(line, separator)
	if !ok {
		return Message{Raw: line}, ErrNoSeparator
	}

	tag := Tag(raw)
	if _, known := knownTags[tag]; !known {
		tag = TagUnknown
	}
	return Message{Tag: tag, Payload: payload, Raw: raw}, nil
}

// Encode renders a message as a newline-terminated wire line.
func Encode(m Message) string {
	return line(m.Tag, m.Payload)
}

func line(tag Tag, payload string) string {
	var b strings.Builder
	b.Grow(len(tag) + len(payload) + 2)
	b.WriteString(string(tag))
	b.WriteString(separator)
	b.WriteString(payload)
	b.WriteByte('\n')
	return b.String()
}

// Server to client lines.

func AuthChallenge() string { return line(TagAuth, "") }
func Who() string           { return line(TagWho, "") }
func NameTaken() string     { return line(TagNameTaken, "") }
func OK() string            { return line(TagOK, "") }
func Kick() string          { return line(TagKick, "") }

func Enter(name string) string { return line(TagEnter, name) }
func Leave(name string) string { return line(TagLeave, name) }

// Msg builds a chat line attributed to name.
func Msg(name, text string) string { return line(TagMsg, name+separator+text) }

// List builds a roster line from already ordered names.
func List(names []string) string { return line(TagList, strings.Join(names, ",")) }

// Client to server lines.

func AuthResponse(credential string) string { return line(TagAuth, credential) }
func Name(name string) string               { return line(TagName, name) }
func Say(text string) string                { return line(TagSay, text) }
func KickRequest(name string) string        { return line(TagKick, name) }
func ListRequest() string                   { return line(TagList, "") }
func LeaveRequest() string                  { return line(TagLeave, "") }

// SplitMsg separates a MSG payload into sender and text.
func SplitMsg(payload string) (name, text string, ok bool) {
	return strings.Cut(payload, separator)
}

// Sanitize replaces every byte outside printable ASCII with '?'.
func Sanitize(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if !printable(s[i]) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	b := []byte(s)
	for i, c := range b {
		if !printable(c) {
			b[i] = '?'
		}
	}
	return string(b)
}

func printable(c byte) bool {
	return c >= 0x20 && c <= 0x7e
}
