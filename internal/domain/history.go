package domain

// HistoryLimit is the maximum number of entries kept in a session history.
const HistoryLimit = 20

// HistoryEntry is one stored conversion as shown in the history table.
type HistoryEntry struct {
	When       string  `json:"when"`
	Celsius    float64 `json:"celsius"`
	Fahrenheit float64 `json:"fahrenheit"`
}

// History is an oldest-first log of conversions, capped at HistoryLimit.
type History []HistoryEntry

// Append returns a new history with e added and only the last HistoryLimit
// entries retained. The receiver is not modified.
func (h History) Append(e HistoryEntry) History {
	out := make(History, 0, len(h)+1)
	out = append(out, h...)
	out = append(out, e)
	return out.Bounded()
}

// Bounded returns h truncated to its last HistoryLimit entries.
func (h History) Bounded() History {
	if len(h) <= HistoryLimit {
		return h
	}
	return h[len(h)-HistoryLimit:]
}

// NewestFirst returns a copy of h in reverse-chronological order.
func (h History) NewestFirst() []HistoryEntry {
	out := make([]HistoryEntry, len(h))
	for i, e := range h {
		out[len(h)-1-i] = e
	}
	return out
}
