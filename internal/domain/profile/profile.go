// Package profile models the per-user teaching profile collected through
// the configuration menu.
package profile

import "time"

// Well-known profile fields the router checks before searching content.
const (
	FieldName    = "nombre"
	FieldLevel   = "nivel"
	FieldGrade   = "grado"
	FieldSubject = "materia"
)

// Profile holds a user's attributes. Profiles are created lazily on first
// contact, mutated by profile-configuration turns, and never deleted; they
// survive conversation rollover unchanged.
type Profile struct {
	UserID    string            `json:"user_id"`
	Fields    map[string]string `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// New returns an empty profile for the given user.
func New(userID string) *Profile {
	return &Profile{UserID: userID, Fields: map[string]string{}}
}

// Get returns the value for a field, or "" when unset.
func (p *Profile) Get(field string) string {
	if p == nil || p.Fields == nil {
		return ""
	}
	return p.Fields[field]
}

// Set assigns a field value.
func (p *Profile) Set(field, value string) {
	if p.Fields == nil {
		p.Fields = map[string]string{}
	}
	p.Fields[field] = value
}

// Missing returns the subset of fields that are unset.
func (p *Profile) Missing(fields ...string) []string {
	var out []string
	for _, f := range fields {
		if p.Get(f) == "" {
			out = append(out, f)
		}
	}
	return out
}

// DisplayName returns the user's name or a generic fallback.
func (p *Profile) DisplayName() string {
	if name := p.Get(FieldName); name != "" {
		return name
	}
	return "Docente"
}
