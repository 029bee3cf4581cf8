package models

// Choice is one outgoing link of a passage.
type Choice struct {
	Label    string `json:"label"`
	TargetID string `json:"targetId"`
}

// Passage represents one node of the story graph. Passages never change after
// the graph is loaded.
type Passage struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Tags    []string `json:"tags,omitempty"`
	Choices []Choice `json:"choices"`
}

// IsTerminal reports whether the passage has no outgoing choices.
func (p Passage) IsTerminal() bool {
	return len(p.Choices) == 0
}

// HasTag reports whether the passage carries the given tag.
func (p Passage) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
