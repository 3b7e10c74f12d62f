package enums

type CommandKind string

const (
	CommandKindApprove CommandKind = "APPROVE"
	CommandKindReject  CommandKind = "REJECT"
	CommandKindInspect CommandKind = "INSPECT"
)

// TargetState is the state a decision command moves a review into. Inspect has none.
func (k CommandKind) TargetState() (ReviewState, bool) {
	switch k {
	case CommandKindApprove:
		return ReviewStatePublished, true
	case CommandKindReject:
		return ReviewStateRejected, true
	default:
		return "", false
	}
}
