package chat

import (
	"encoding/json"
	"fmt"

	"github.com/redmag-edu/mentoria/internal/domain/content"
)

// ResponseType discriminates the five response shapes the frontend renders.
type ResponseType string

const (
	TypeWelcome      ResponseType = "welcome"
	TypeButtons      ResponseType = "buttons"
	TypeTextInput    ResponseType = "text_input"
	TypeText         ResponseType = "text"
	TypeVectorSearch ResponseType = "vector_search"
)

// WelcomePayload is the greeting menu shown on the first message of a
// conversation.
type WelcomePayload struct {
	Message string   `json:"message"`
	Options []Option `json:"options"`
}

// ButtonsPayload prompts the user to pick from option lists.
type ButtonsPayload struct {
	Message   string     `json:"message"`
	Questions []Question `json:"questions"`
}

// TextInputPayload prompts the user for free text.
type TextInputPayload struct {
	Message     string `json:"message"`
	Placeholder string `json:"placeholder,omitempty"`
}

// TextPayload is a plain answer.
type TextPayload struct {
	Text string `json:"text"`
}

// VectorSearchPayload carries retrieved content items with an intro line.
type VectorSearchPayload struct {
	IntroText    string         `json:"intro_text"`
	Items        []content.Item `json:"content_cards"`
	TotalResults int            `json:"total_results"`
}

// Response is the tagged union of response shapes. Exactly one payload
// pointer matching Type is set; MarshalJSON enforces the pairing so an
// unhandled shape fails loudly instead of serializing an empty body.
type Response struct {
	Type         ResponseType
	Welcome      *WelcomePayload
	Buttons      *ButtonsPayload
	TextInput    *TextInputPayload
	Text         *TextPayload
	VectorSearch *VectorSearchPayload
}

// wireResponse is the JSON envelope: {"type": ..., "data": {...}}.
type wireResponse struct {
	Type ResponseType    `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON serializes the response with its type discriminator. The
// switch is exhaustive over ResponseType.
func (r Response) MarshalJSON() ([]byte, error) {
	var payload any
	switch r.Type {
	case TypeWelcome:
		payload = r.Welcome
	case TypeButtons:
		payload = r.Buttons
	case TypeTextInput:
		payload = r.TextInput
	case TypeText:
		payload = r.Text
	case TypeVectorSearch:
		payload = r.VectorSearch
	default:
		return nil, fmt.Errorf("marshal response: unhandled type %q", r.Type)
	}
	if payload == nil || isNilPointer(payload) {
		return nil, fmt.Errorf("marshal response: type %q has no payload", r.Type)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal response payload: %w", err)
	}
	return json.Marshal(wireResponse{Type: r.Type, Data: data})
}

// UnmarshalJSON restores a tagged response from its wire envelope.
func (r *Response) UnmarshalJSON(data []byte) error {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Type = w.Type
	switch w.Type {
	case TypeWelcome:
		r.Welcome = &WelcomePayload{}
		return json.Unmarshal(w.Data, r.Welcome)
	case TypeButtons:
		r.Buttons = &ButtonsPayload{}
		return json.Unmarshal(w.Data, r.Buttons)
	case TypeTextInput:
		r.TextInput = &TextInputPayload{}
		return json.Unmarshal(w.Data, r.TextInput)
	case TypeText:
		r.Text = &TextPayload{}
		return json.Unmarshal(w.Data, r.Text)
	case TypeVectorSearch:
		r.VectorSearch = &VectorSearchPayload{}
		return json.Unmarshal(w.Data, r.VectorSearch)
	default:
		return fmt.Errorf("unmarshal response: unhandled type %q", w.Type)
	}
}

// Summary returns a short human-readable line for persisting the assistant
// turn, mirroring what the frontend renders in history lists.
func (r Response) Summary() string {
	switch r.Type {
	case TypeWelcome:
		return r.Welcome.Message
	case TypeButtons:
		return r.Buttons.Message
	case TypeTextInput:
		return r.TextInput.Message
	case TypeText:
		return r.Text.Text
	case TypeVectorSearch:
		return r.VectorSearch.IntroText
	default:
		return ""
	}
}

func isNilPointer(v any) bool {
	switch p := v.(type) {
	case *WelcomePayload:
		return p == nil
	case *ButtonsPayload:
		return p == nil
	case *TextInputPayload:
		return p == nil
	case *TextPayload:
		return p == nil
	case *VectorSearchPayload:
		return p == nil
	}
	return false
}
