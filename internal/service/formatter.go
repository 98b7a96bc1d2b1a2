package service

import (
	"fmt"

	"github.com/redmag-edu/mentoria/internal/domain/chat"
	"github.com/redmag-edu/mentoria/internal/domain/content"
	"github.com/redmag-edu/mentoria/internal/port/vectorindex"
)

// apologyText is returned when the model pipeline is unavailable.
const apologyText = "Le ofrezco una disculpa: en este momento no puedo procesar su solicitud. " +
	"Por favor, intente de nuevo en unos minutos."

// FormatDecision maps a routing decision to its response shape. The switch
// is exhaustive over DecisionKind; escalations never reach the formatter
// directly because the specialist stage resolves them first.
func FormatDecision(d chat.Decision) (chat.Response, error) {
	switch d.Kind {
	case chat.DecisionDirect:
		return TextResponse(d.Text), nil
	case chat.DecisionClarify:
		return chat.Response{
			Type: chat.TypeButtons,
			Buttons: &chat.ButtonsPayload{
				Message:   d.Prompt,
				Questions: d.Questions,
			},
		}, nil
	case chat.DecisionEscalate:
		return chat.Response{}, fmt.Errorf("format decision: escalation must be resolved by the specialist stage")
	default:
		return chat.Response{}, fmt.Errorf("format decision: unhandled kind %q", d.Kind)
	}
}

// TextResponse wraps a plain answer.
func TextResponse(text string) chat.Response {
	return chat.Response{
		Type: chat.TypeText,
		Text: &chat.TextPayload{Text: text},
	}
}

// ApologyResponse is the generic failure answer used when the model
// pipeline is unavailable (circuit open or repeated failures).
func ApologyResponse() chat.Response {
	return TextResponse(apologyText)
}

// SearchResponse folds vector index matches into the search-result shape.
func SearchResponse(intro string, matches []vectorindex.Match) chat.Response {
	items := make([]content.Item, 0, len(matches))
	for _, m := range matches {
		item := m.Item
		if item.ID == "" {
			item.ID = m.ID
		}
		// The card list never carries the long-form body.
		item.Body = ""
		items = append(items, item)
	}
	return chat.Response{
		Type: chat.TypeVectorSearch,
		VectorSearch: &chat.VectorSearchPayload{
			IntroText:    intro,
			Items:        items,
			TotalResults: len(items),
		},
	}
}
