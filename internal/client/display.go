package client

import (
	"fmt"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// Render turns a server notice into the line shown to the user. Notices with
// an empty payload and anything that is not a notice render nothing.
func Render(msg proto.Message) (string, bool) {
	payload := proto.Sanitize(msg.Payload)
	if payload == "" {
		return "", false
	}

	switch msg.Tag {
	case proto.TagEnter:
		return core.EnteredNotice(payload), true
	case proto.TagLeave:
		return core.LeftNotice(payload), true
	case proto.TagList:
		return fmt.Sprintf("(current chatters: %s)", payload), true
	case proto.TagMsg:
		name, text, ok := proto.SplitMsg(payload)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s: %s", name, text), true
	default:
		return "", false
	}
}
