package models

// RestrictionCode summarizes why a prospective transfer would fail, in the
// manner of ERC-1404. Zero means no restriction; 1-9 are reserved for the
// reasons below. Codes from external rule/debt engines above this range are
// passed through untouched, with message lookup delegated to the engine.
type RestrictionCode uint8

const (
	CodeNone                RestrictionCode = 0
	CodeInsufficientBalance RestrictionCode = 1
	CodePaused              RestrictionCode = 2
	CodeToFrozen            RestrictionCode = 3
	CodeDeactivated         RestrictionCode = 4
	CodeRuleEngine          RestrictionCode = 5
	CodeDebtEngine          RestrictionCode = 6
	CodeInvalidRecipient    RestrictionCode = 7
	CodeInvalidSender       RestrictionCode = 8
	CodeFromFrozen          RestrictionCode = 9
)

// restrictionMessages is the canonical message table for codes this layer
// itself produces.
var restrictionMessages = map[RestrictionCode]string{
	CodeNone:                "No restriction",
	CodeInsufficientBalance: "Insufficient active balance",
	CodePaused:              "Contract paused",
	CodeToFrozen:            "Recipient address frozen",
	CodeDeactivated:         "Contract deactivated",
	CodeRuleEngine:          "Rule engine restriction",
	CodeDebtEngine:          "Debt engine restriction",
	CodeInvalidRecipient:    "Invalid recipient",
	CodeInvalidSender:       "Invalid sender",
	CodeFromFrozen:          "Sender address frozen",
}

// UnknownRestrictionMessage is returned for codes outside the table when no
// external engine claims them.
const UnknownRestrictionMessage = "Unknown restriction"

// Restricted reports whether the code blocks a transfer.
func (c RestrictionCode) Restricted() bool {
	return c != CodeNone
}

// Known reports whether this layer owns the code's meaning.
func (c RestrictionCode) Known() bool {
	_, ok := restrictionMessages[c]
	return ok
}

// Message returns the human-readable text for codes this layer owns, or
// UnknownRestrictionMessage otherwise. Engine-owned codes get their text via
// the validation engine, which delegates lookup to the engine that produced
// them.
func (c RestrictionCode) Message() string {
	if msg, ok := restrictionMessages[c]; ok {
		return msg
	}
	return UnknownRestrictionMessage
}
