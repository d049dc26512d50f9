package models

// IntentKind discriminates the classified meaning of an inbound message.
type IntentKind int

const (
	// IntentUnrecognized means the message matched nothing; it gets no
	// action and no reply.
	IntentUnrecognized IntentKind = iota
	// IntentRSVP is a yes/no answer, optionally with a sub count.
	IntentRSVP
	// IntentListStatus asks for the current RSVP list.
	IntentListStatus
	// IntentFreeText is a member message to be relayed to the admins.
	IntentFreeText
	// IntentAdminReminder asks to re-invite members who have not RSVP'd.
	IntentAdminReminder
	// IntentAdminBroadcast sends the carried text to every member.
	IntentAdminBroadcast
)

func (k IntentKind) String() string {
	switch k {
	case IntentRSVP:
		return "rsvp"
	case IntentListStatus:
		return "list-status"
	case IntentFreeText:
		return "free-text"
	case IntentAdminReminder:
		return "admin-reminder"
	case IntentAdminBroadcast:
		return "admin-broadcast"
	default:
		return "unrecognized"
	}
}

// Intent is the classified form of one inbound message. It is produced by
// the classifier and consumed once by the engine.
type Intent struct {
	Kind     IntentKind
	Reply    Reply  // IntentRSVP only
	SubCount int    // IntentRSVP only
	Text     string // IntentFreeText and IntentAdminBroadcast
}
