package models

// Member represents a player on the roster. The phone number is the
// identity key for inbound messages; names are unique within the roster.
type Member struct {
	Name  string
	Phone string
	Admin bool
}
