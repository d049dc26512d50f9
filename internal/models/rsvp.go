package models

import "time"

// Reply is an RSVP answer.
type Reply string

const (
	ReplyYes Reply = "yes"
	ReplyNo  Reply = "no"
)

// Valid reports whether the reply is one of the known answers.
func (r Reply) Valid() bool {
	return r == ReplyYes || r == ReplyNo
}

// Capitalized returns the reply word for user-facing messages ("Yes"/"No").
func (r Reply) Capitalized() string {
	switch r {
	case ReplyYes:
		return "Yes"
	case ReplyNo:
		return "No"
	default:
		return string(r)
	}
}

// RSVPRecord is one append-only ledger entry. Records are never updated or
// deleted; the effective record for a (game, member) pair is the one with
// the greatest RecordedAt, with the ULID ID as tie-breaker.
type RSVPRecord struct {
	ID         string
	GameTime   time.Time
	MemberName string
	Reply      Reply
	SubCount   int
	RecordedAt time.Time
}
