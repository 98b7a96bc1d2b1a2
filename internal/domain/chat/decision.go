package chat

// DecisionKind tags the outcome of the router stage.
type DecisionKind string

const (
	// DecisionDirect carries a ready answer; no further analysis.
	DecisionDirect DecisionKind = "direct"
	// DecisionClarify asks the user for missing information.
	DecisionClarify DecisionKind = "clarify"
	// DecisionEscalate hands the query to the specialist stage.
	DecisionEscalate DecisionKind = "escalate"
)

// Question is a clarification prompt with selectable options.
type Question struct {
	Field   string   `json:"field_name"`
	Text    string   `json:"question_text"`
	Options []Option `json:"options,omitempty"`
}

// Option is a single selectable choice.
type Option struct {
	Label       string `json:"label"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// Decision is the tagged routing outcome. Exactly the fields for its Kind
// are populated.
type Decision struct {
	Kind DecisionKind

	// Direct
	Text string

	// Clarify
	Prompt    string
	Questions []Question

	// Escalate
	Query       string
	ContextKeys []string
}

// Direct builds a direct-answer decision.
func Direct(text string) Decision {
	return Decision{Kind: DecisionDirect, Text: text}
}

// Clarify builds an ask-for-information decision.
func Clarify(prompt string, questions []Question) Decision {
	return Decision{Kind: DecisionClarify, Prompt: prompt, Questions: questions}
}

// Escalate builds a deep-analysis decision. contextKeys selects the
// knowledge-base entries the specialist stage receives.
func Escalate(query string, contextKeys []string) Decision {
	return Decision{Kind: DecisionEscalate, Query: query, ContextKeys: contextKeys}
}
