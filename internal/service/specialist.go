package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"text/template"

	_ "embed"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/redmag-edu/mentoria/internal/adapter/otel"
	"github.com/redmag-edu/mentoria/internal/domain/chat"
	"github.com/redmag-edu/mentoria/internal/domain/profile"
	"github.com/redmag-edu/mentoria/internal/port/llm"
	"github.com/redmag-edu/mentoria/internal/port/vectorindex"
	"github.com/redmag-edu/mentoria/internal/resilience"
)

//go:embed templates/specialist.tmpl
var specialistTmplText string

var specialistTmpl = template.Must(template.New("specialist").Parse(specialistTmplText))

type specialistPromptData struct {
	Profile string
	Message string
	Context string
}

// specialistPlan is the JSON plan the deep-analysis model returns.
type specialistPlan struct {
	Type string `json:"type"`
	Data struct {
		ResponseText string `json:"response_text"`
		Query        string `json:"query"`
		IntroText    string `json:"intro_text"`
	} `json:"data"`
}

const planVectorSearch = "vector_search"

// Specialist is the second-pass deep-analysis stage. It answers escalated
// queries directly or retrieves content through the vector index. Index
// and embedding failures degrade to a plain text answer; the request
// never aborts on them.
type Specialist struct {
	llm        llm.Client
	index      vectorindex.Index
	kb         *KnowledgeBase
	model      string
	embedModel string
	maxTokens  int
	topK       int
	metrics    *otel.Metrics
	log        *slog.Logger
}

// NewSpecialist creates the deep-analysis stage.
func NewSpecialist(client llm.Client, index vectorindex.Index, kb *KnowledgeBase, model, embedModel string, maxTokens, topK int, metrics *otel.Metrics, log *slog.Logger) *Specialist {
	if topK <= 0 {
		topK = 5
	}
	return &Specialist{
		llm:        client,
		index:      index,
		kb:         kb,
		model:      model,
		embedModel: embedModel,
		maxTokens:  maxTokens,
		topK:       topK,
		metrics:    metrics,
		log:        log,
	}
}

// Resolve answers an escalated query. Only a tripped circuit breaker is
// surfaced so the caller can apologize; any other model failure falls back
// to a generic text answer rather than failing the turn.
func (s *Specialist) Resolve(ctx context.Context, query string, contextKeys []string, p *profile.Profile) (chat.Response, error) {
	prompt, err := s.buildPrompt(query, contextKeys, p)
	if err != nil {
		s.log.Error("specialist prompt build failed", "error", err)
		return ApologyResponse(), nil
	}

	resp, err := s.llm.Complete(ctx, llm.Request{
		Model:     s.model,
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: s.maxTokens,
		JSONOnly:  true,
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return chat.Response{}, err
		}
		s.log.Warn("specialist model call failed", "error", err)
		return ApologyResponse(), nil
	}
	s.metrics.TokensConsumed.Add(ctx, int64(resp.TokensIn+resp.TokensOut),
		metric.WithAttributes(attribute.String("model", s.model)))

	var plan specialistPlan
	if err := json.Unmarshal([]byte(stripJSONFences(resp.Content)), &plan); err != nil {
		s.log.Warn("specialist plan malformed", "error", err)
		return ApologyResponse(), nil
	}

	if plan.Type == planVectorSearch && plan.Data.Query != "" {
		return s.search(ctx, plan), nil
	}
	if plan.Data.ResponseText == "" {
		s.log.Warn("specialist plan empty", "type", plan.Type)
		return ApologyResponse(), nil
	}
	return TextResponse(plan.Data.ResponseText), nil
}

// search runs the retrieval leg of a vector_search plan. Failures and
// empty result sets degrade to a text answer.
func (s *Specialist) search(ctx context.Context, plan specialistPlan) chat.Response {
	ctx, span := otel.StartSearchSpan(ctx, s.topK)
	defer span.End()

	embedding, err := s.llm.Embed(ctx, s.embedModel, plan.Data.Query)
	if err != nil {
		s.log.Warn("embedding failed, degrading to text", "error", err)
		s.metrics.SearchFailures.Add(ctx, 1)
		return s.degraded(plan)
	}

	matches, err := s.index.Search(ctx, embedding, s.topK)
	if err != nil {
		s.log.Warn("vector search failed, degrading to text", "error", err)
		s.metrics.SearchFailures.Add(ctx, 1)
		return s.degraded(plan)
	}
	if len(matches) == 0 {
		return TextResponse("No encontré materiales que coincidan con su búsqueda. " +
			"¿Podría darme más detalles sobre lo que necesita?")
	}

	intro := plan.Data.IntroText
	if intro == "" {
		intro = "Encontré estos materiales que pueden servirle:"
	}
	return SearchResponse(intro, matches)
}

// degraded answers without retrieval when the index is unavailable.
func (s *Specialist) degraded(plan specialistPlan) chat.Response {
	if plan.Data.ResponseText != "" {
		return TextResponse(plan.Data.ResponseText)
	}
	return TextResponse("En este momento no puedo buscar en el catálogo de materiales. " +
		"Con gusto le ayudo si me describe lo que necesita y le doy orientación directa.")
}

func (s *Specialist) buildPrompt(query string, contextKeys []string, p *profile.Profile) (string, error) {
	profileJSON, err := json.Marshal(p.Fields)
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}

	contextJSON, err := json.Marshal(s.kb.Select(contextKeys))
	if err != nil {
		return "", fmt.Errorf("marshal knowledge context: %w", err)
	}

	var buf bytes.Buffer
	err = specialistTmpl.Execute(&buf, specialistPromptData{
		Profile: string(profileJSON),
		Message: query,
		Context: string(contextJSON),
	})
	if err != nil {
		return "", fmt.Errorf("execute specialist template: %w", err)
	}
	return buf.String(), nil
}
