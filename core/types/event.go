package types

// Event represents a typed event emitted by a committed ledger operation.
// Sequence and Timestamp are assigned when the owning operation commits.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Sequence   uint64            `json:"sequence,omitempty"`
	Timestamp  int64             `json:"timestamp,omitempty"`
}

// Attr returns the attribute value or an empty string.
func (e *Event) Attr(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}
