package question

// Question is one interview prompt spoken to the candidate.
type Question struct {
	ID       string `json:"id" yaml:"id"`
	Text     string `json:"text" yaml:"text"`
	Category string `json:"category,omitempty" yaml:"category"`
}

// Seed provides the built-in behavioral question bank.
func Seed() []Question {
	return []Question{
		{
			ID:       "intro",
			Text:     "Tell me about yourself and what brings you to this role.",
			Category: "general",
		},
		{
			ID:       "challenge",
			Text:     "Describe a difficult problem you solved recently. What was your approach?",
			Category: "behavioral",
		},
		{
			ID:       "conflict",
			Text:     "Tell me about a time you disagreed with a teammate. How did you resolve it?",
			Category: "behavioral",
		},
		{
			ID:       "failure",
			Text:     "What is a mistake you made at work, and what did you learn from it?",
			Category: "behavioral",
		},
		{
			ID:       "strength",
			Text:     "What strength would your previous manager say you bring to a team?",
			Category: "general",
		},
		{
			ID:       "future",
			Text:     "Where do you want your career to be in three years?",
			Category: "motivation",
		},
	}
}
