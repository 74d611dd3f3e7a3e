package entity

import (
	"encoding/json"
	"fmt"
)

type PollOption struct {
	Text  string   `json:"text"`
	Votes []string `json:"votes,omitempty"`
}

type Poll struct {
	Question string       `json:"question"`
	Options  []PollOption `json:"options"`
}

// TotalVotes sums votes across all options.
func (p *Poll) TotalVotes() int {
	total := 0
	for _, opt := range p.Options {
		total += len(opt.Votes)
	}
	return total
}

// PollData returns the structured poll for a poll message. The decoded Poll
// field wins; older rows carry the poll JSON-encoded in content.
func (m *Message) PollData() (*Poll, error) {
	if m.Poll != nil {
		return m.Poll, nil
	}
	if m.EffectiveType() != TypePoll {
		return nil, fmt.Errorf("message %s is not a poll", m.MessageID)
	}
	var poll Poll
	if err := json.Unmarshal([]byte(m.Content), &poll); err != nil {
		return nil, fmt.Errorf("decode poll content: %w", err)
	}
	return &poll, nil
}
