package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/template"

	_ "embed"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/redmag-edu/mentoria/internal/adapter/otel"
	"github.com/redmag-edu/mentoria/internal/domain/chat"
	"github.com/redmag-edu/mentoria/internal/domain/profile"
	"github.com/redmag-edu/mentoria/internal/port/llm"
	"github.com/redmag-edu/mentoria/internal/resilience"
)

//go:embed templates/router.tmpl
var routerTmplText string

var routerTmpl = template.Must(template.New("router").Parse(routerTmplText))

// routerPromptData carries the triage context into the prompt template.
type routerPromptData struct {
	Profile string
	History string
	Message string
	NEMKeys string
	SEPKeys string
}

// routerPlan is the JSON plan the triage model returns.
type routerPlan struct {
	Intent   string `json:"intent"`
	Analysis string `json:"analysis"`
	Action   struct {
		Type string `json:"type"`
		Data struct {
			ResponseText        string          `json:"response_text"`
			Questions           []chat.Question `json:"questions"`
			SelectedContextKeys []string        `json:"selected_context_keys"`
		} `json:"data"`
	} `json:"action"`
}

// Triage action types the router model may return. Anything else is
// treated as an escalation rather than a guessed direct answer.
const (
	actionDirectAnswer = "direct_answer"
	actionAskForInfo   = "ask_for_information"
	actionDeepAnalysis = "needs_deep_analysis"
)

// Router is the first-pass triage stage. It maps menu selections without a
// model call and classifies free text with the lightweight model.
type Router struct {
	llm       llm.Client
	kb        *KnowledgeBase
	model     string
	maxTokens int
	metrics   *otel.Metrics
	log       *slog.Logger
}

// NewRouter creates the triage stage.
func NewRouter(client llm.Client, kb *KnowledgeBase, model string, maxTokens int, metrics *otel.Metrics, log *slog.Logger) *Router {
	return &Router{llm: client, kb: kb, model: model, maxTokens: maxTokens, metrics: metrics, log: log}
}

// MenuSelection maps a numeric reply to the option it selects when the last
// assistant turn was a welcome menu or button prompt. Deterministic: option
// lists are numbered in display order, 1-based. The second return is false
// when the fast path does not apply.
func MenuSelection(window []chat.Turn, message string) (chat.DataInput, bool) {
	last := lastAssistantTurn(window)
	if last == nil {
		return chat.DataInput{}, false
	}

	n, err := strconv.Atoi(strings.TrimSpace(message))
	if err != nil || n < 1 {
		return chat.DataInput{}, false
	}

	var resp chat.Response
	if err := json.Unmarshal(last.Payload, &resp); err != nil {
		return chat.DataInput{}, false
	}

	switch resp.Type {
	case chat.TypeWelcome:
		if n > len(resp.Welcome.Options) {
			return chat.DataInput{}, false
		}
		return chat.DataInput{Field: "menu_option", Value: resp.Welcome.Options[n-1].Value}, true
	case chat.TypeButtons:
		// Options are numbered across questions in display order.
		i := n
		for _, q := range resp.Buttons.Questions {
			if i <= len(q.Options) {
				return chat.DataInput{Field: q.Field, Value: q.Options[i-1].Value}, true
			}
			i -= len(q.Options)
		}
		return chat.DataInput{}, false
	default:
		return chat.DataInput{}, false
	}
}

func lastAssistantTurn(window []chat.Turn) *chat.Turn {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Role == chat.RoleAssistant {
			return &window[i]
		}
	}
	return nil
}

// Route classifies a free-text message into a routing decision. Model
// failures and malformed plans default to escalation; only a tripped
// circuit breaker is surfaced so the caller can apologize instead.
func (r *Router) Route(ctx context.Context, message string, window []chat.Turn, p *profile.Profile) (chat.Decision, error) {
	prompt, err := r.buildPrompt(message, window, p)
	if err != nil {
		r.log.Error("router prompt build failed", "error", err)
		return chat.Escalate(message, nil), nil
	}

	resp, err := r.llm.Complete(ctx, llm.Request{
		Model:     r.model,
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: r.maxTokens,
		JSONOnly:  true,
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return chat.Decision{}, err
		}
		r.log.Warn("router model call failed, escalating", "error", err)
		return chat.Escalate(message, nil), nil
	}
	r.metrics.TokensConsumed.Add(ctx, int64(resp.TokensIn+resp.TokensOut),
		metric.WithAttributes(attribute.String("model", r.model)))

	plan, err := parseRouterPlan(resp.Content)
	if err != nil {
		r.log.Warn("router plan malformed, escalating", "error", err)
		return chat.Escalate(message, nil), nil
	}

	switch plan.Action.Type {
	case actionDirectAnswer:
		if plan.Action.Data.ResponseText == "" {
			return chat.Escalate(message, nil), nil
		}
		return chat.Direct(plan.Action.Data.ResponseText), nil
	case actionAskForInfo:
		if len(plan.Action.Data.Questions) == 0 {
			return chat.Escalate(message, nil), nil
		}
		prompt := plan.Action.Data.ResponseText
		if prompt == "" {
			prompt = "Para ayudarle mejor, necesito un poco más de información."
		}
		return chat.Clarify(prompt, plan.Action.Data.Questions), nil
	case actionDeepAnalysis:
		return chat.Escalate(message, plan.Action.Data.SelectedContextKeys), nil
	default:
		r.log.Warn("router returned unknown action, escalating", "action", plan.Action.Type)
		return chat.Escalate(message, nil), nil
	}
}

func (r *Router) buildPrompt(message string, window []chat.Turn, p *profile.Profile) (string, error) {
	profileJSON, err := json.Marshal(p.Fields)
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}

	history := make([]map[string]string, 0, len(window))
	for _, t := range window {
		history = append(history, map[string]string{
			"role":    string(t.Role),
			"content": t.Content,
		})
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("marshal history: %w", err)
	}

	var buf bytes.Buffer
	err = routerTmpl.Execute(&buf, routerPromptData{
		Profile: string(profileJSON),
		History: string(historyJSON),
		Message: message,
		NEMKeys: strings.Join(r.kb.NEMKeys(), ", "),
		SEPKeys: strings.Join(r.kb.SEPKeys(), ", "),
	})
	if err != nil {
		return "", fmt.Errorf("execute router template: %w", err)
	}
	return buf.String(), nil
}

func parseRouterPlan(content string) (*routerPlan, error) {
	var plan routerPlan
	if err := json.Unmarshal([]byte(stripJSONFences(content)), &plan); err != nil {
		return nil, fmt.Errorf("parse router plan: %w", err)
	}
	if plan.Action.Type == "" {
		return nil, fmt.Errorf("parse router plan: missing action type")
	}
	return &plan, nil
}

// stripJSONFences removes markdown code fences some models wrap around
// JSON output.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
