package moderation

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ivankudzin/brokerreviews/internal/domain/enums"
	"github.com/ivankudzin/brokerreviews/internal/domain/model"
)

var commandPattern = regexp.MustCompile(`^/(approve|reject|view)_(\d+)(?:@(\w+))?$`)

// ParseCommand recognizes "/approve_<id>", "/reject_<id>" and "/view_<id>" as the first word of
// text, with an optional "@botname" suffix kept in Mention. Anything else reports false.
func ParseCommand(text string) (model.ModerationCommand, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return model.ModerationCommand{}, false
	}

	match := commandPattern.FindStringSubmatch(fields[0])
	if match == nil {
		return model.ModerationCommand{}, false
	}

	reviewID, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil || reviewID <= 0 {
		return model.ModerationCommand{}, false
	}

	var kind enums.CommandKind
	switch match[1] {
	case "approve":
		kind = enums.CommandKindApprove
	case "reject":
		kind = enums.CommandKindReject
	default:
		kind = enums.CommandKindInspect
	}

	return model.ModerationCommand{Kind: kind, ReviewID: reviewID, Mention: match[3]}, true
}

func parseInbound(in Inbound) (model.ModerationCommand, bool) {
	cmd, ok := ParseCommand(in.Text)
	if !ok {
		return cmd, false
	}
	cmd.Issuer = strings.TrimSpace(in.Issuer)
	cmd.ReceivedAt = in.ReceivedAt
	if cmd.ReceivedAt.IsZero() {
		cmd.ReceivedAt = time.Now().UTC()
	}
	return cmd, true
}
