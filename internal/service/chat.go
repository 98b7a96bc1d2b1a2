// Package service implements the chat pipeline: context assembly, the
// two-stage agent routing, response formatting, and persistence.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/redmag-edu/mentoria/internal/adapter/otel"
	"github.com/redmag-edu/mentoria/internal/adapter/ws"
	"github.com/redmag-edu/mentoria/internal/domain"
	"github.com/redmag-edu/mentoria/internal/domain/chat"
	"github.com/redmag-edu/mentoria/internal/domain/profile"
	"github.com/redmag-edu/mentoria/internal/port/cache"
	"github.com/redmag-edu/mentoria/internal/port/events"
	"github.com/redmag-edu/mentoria/internal/port/store"
	"github.com/redmag-edu/mentoria/internal/resilience"
)

// ChatService orchestrates one chat interaction end to end: load context,
// route, resolve, persist both turns, and emit events.
type ChatService struct {
	store      store.Store
	cache      cache.Cache
	assembler  *ContextAssembler
	router     *Router
	specialist *Specialist
	publisher  events.Publisher // nil when event publishing is disabled
	hub        *ws.Hub          // nil when the websocket surface is disabled
	metrics    *otel.Metrics
	profileTTL time.Duration
	log        *slog.Logger
}

// NewChatService wires the chat pipeline. publisher and hub may be nil.
func NewChatService(st store.Store, c cache.Cache, assembler *ContextAssembler, router *Router, specialist *Specialist, publisher events.Publisher, hub *ws.Hub, metrics *otel.Metrics, profileTTL time.Duration, log *slog.Logger) *ChatService {
	return &ChatService{
		store:      st,
		cache:      c,
		assembler:  assembler,
		router:     router,
		specialist: specialist,
		publisher:  publisher,
		hub:        hub,
		metrics:    metrics,
		profileTTL: profileTTL,
		log:        log,
	}
}

// HandleMessage processes one inbound interaction and returns the response
// to render. Storage failures are fatal; model and index failures degrade
// per stage.
func (s *ChatService) HandleMessage(ctx context.Context, req chat.Request) (*chat.Result, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(req.Message) == "" && len(req.UserData) == 0 {
		return nil, fmt.Errorf("%w: message or user_data is required", domain.ErrValidation)
	}

	ctx, span := otel.StartTurnSpan(ctx, req.ConversationID, req.UserID)
	defer span.End()

	asm, err := s.assembler.Assemble(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	conv := asm.Conversation

	p, err := s.loadProfile(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if asm.Rolled {
		s.metrics.Rollovers.Add(ctx, 1)
		s.emitRollover(ctx, req.UserID, asm.ClosedID, conv)
	}

	// Structured button input either short-circuits with a fixed response
	// or rewrites the message fed into routing.
	message := req.Message
	userTurnContent := req.Message
	if len(req.UserData) > 0 {
		immediate, derived, content, err := s.applyUserData(ctx, req.UserData, p)
		if err != nil {
			return nil, err
		}
		userTurnContent = content
		if immediate != nil {
			return s.finishTurn(ctx, conv, req.UserID, userTurnContent, *immediate)
		}
		message = derived
	} else if n, ok := MenuSelection(asm.Window, message); ok {
		// Numeric replies to a menu resolve deterministically, no model call.
		immediate, derived, content, err := s.applyUserData(ctx, []chat.DataInput{n}, p)
		if err != nil {
			return nil, err
		}
		userTurnContent = content
		if immediate != nil {
			return s.finishTurn(ctx, conv, req.UserID, userTurnContent, *immediate)
		}
		message = derived
	}

	// Brand-new conversations greet instead of routing. Rolled-over
	// conversations skip the greeting and route normally.
	if asm.FirstMessage && !asm.Rolled {
		return s.finishTurn(ctx, conv, req.UserID, userTurnContent, WelcomeResponse(p))
	}

	resp, err := s.route(ctx, message, asm.Window, p)
	if err != nil {
		return nil, err
	}
	return s.finishTurn(ctx, conv, req.UserID, userTurnContent, resp)
}

// route runs the two-stage pipeline: triage first, specialist on
// escalation. A tripped breaker yields the apology answer.
func (s *ChatService) route(ctx context.Context, message string, window []chat.Turn, p *profile.Profile) (chat.Response, error) {
	rctx, span := otel.StartRouteSpan(ctx, s.router.model)
	start := time.Now()
	decision, err := s.router.Route(rctx, message, window, p)
	s.metrics.ModelLatency.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", "router")))
	span.End()
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			s.log.Warn("model circuit open, apologizing", "stage", "router")
			return ApologyResponse(), nil
		}
		return chat.Response{}, err
	}
	s.metrics.Decisions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", string(decision.Kind))))

	if decision.Kind != chat.DecisionEscalate {
		return FormatDecision(decision)
	}

	sctx, span := otel.StartRouteSpan(ctx, s.specialist.model)
	start = time.Now()
	resp, err := s.specialist.Resolve(sctx, decision.Query, decision.ContextKeys, p)
	s.metrics.ModelLatency.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", "specialist")))
	span.End()
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			s.log.Warn("model circuit open, apologizing", "stage", "specialist")
			return ApologyResponse(), nil
		}
		return chat.Response{}, err
	}
	return resp, nil
}

// applyUserData interprets structured button input. It returns either an
// immediate response (menu short-circuits), or the message to route, plus
// the content persisted for the user turn.
func (s *ChatService) applyUserData(ctx context.Context, data []chat.DataInput, p *profile.Profile) (immediate *chat.Response, derived, content string, err error) {
	for _, item := range data {
		if item.Field != "menu_option" {
			continue
		}
		content = fmt.Sprintf("Seleccionó: %s", item.Value)
		switch item.Value {
		case MenuPerfil:
			r := ProfileSetupResponse()
			return &r, "", content, nil
		case MenuOtro:
			r := CustomQueryResponse()
			return &r, "", content, nil
		default:
			if q, ok := menuQueries[item.Value]; ok {
				return nil, q, content, nil
			}
			return nil, fmt.Sprintf("El usuario seleccionó: %s", item.Value), content, nil
		}
	}

	// Profile questionnaire answers: persist, then resume routing.
	var parts []string
	for _, item := range data {
		p.Set(item.Field, item.Value)
		parts = append(parts, fmt.Sprintf("%s=%s", item.Field, item.Value))
	}
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return nil, "", "", fmt.Errorf("update profile: %w", err)
	}
	s.invalidateProfile(ctx, p.UserID)
	content = fmt.Sprintf("Actualizó perfil: %s", strings.Join(parts, ", "))
	return nil, "Continuar", content, nil
}

// finishTurn persists the user and assistant turns, advances the rollover
// lifecycle, and emits events. Persistence failures here are fatal even
// though a response was already computed.
func (s *ChatService) finishTurn(ctx context.Context, conv *chat.Conversation, userID, userContent string, resp chat.Response) (*chat.Result, error) {
	userTurn, err := s.store.AppendTurn(ctx, &chat.Turn{
		ConversationID: conv.ID,
		Role:           chat.RoleUser,
		Content:        userContent,
	})
	if err != nil {
		return nil, fmt.Errorf("persist user turn: %w", err)
	}

	lc := chat.NewLifecycle(conv.Status, conv.MessageCount, s.assembler.cap)
	status, err := lc.RecordMessage()
	if err != nil {
		return nil, fmt.Errorf("advance conversation lifecycle: %w", err)
	}
	if status != conv.Status {
		if err := s.store.UpdateConversationStatus(ctx, conv.ID, status); err != nil {
			return nil, fmt.Errorf("mark conversation %s: %w", status, err)
		}
		s.log.Info("conversation reached message cap",
			"conversation_id", conv.ID, "message_count", lc.MessageCount())
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal response payload: %w", err)
	}
	assistantTurn, err := s.store.AppendTurn(ctx, &chat.Turn{
		ConversationID: conv.ID,
		Role:           chat.RoleAssistant,
		Kind:           resp.Type,
		Content:        resp.Summary(),
		Payload:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("persist assistant turn: %w", err)
	}

	s.metrics.TurnsProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("response.type", string(resp.Type))))
	s.emitTurn(ctx, userID, userTurn, "")
	s.emitTurn(ctx, userID, assistantTurn, string(resp.Type))

	return &chat.Result{ConversationID: conv.ID, Response: resp}, nil
}

func (s *ChatService) emitTurn(ctx context.Context, userID string, t *chat.Turn, responseType string) {
	if s.publisher != nil {
		payload, err := json.Marshal(events.TurnAppendedPayload{
			ConversationID: t.ConversationID,
			UserID:         userID,
			TurnID:         t.ID,
			Seq:            t.Seq,
			Role:           string(t.Role),
			ResponseType:   responseType,
			Timestamp:      t.CreatedAt,
		})
		if err == nil {
			if err := s.publisher.Publish(ctx, events.SubjectTurnAppended, payload); err != nil {
				s.log.Warn("publish turn event failed", "error", err)
			}
		}
	}
	if s.hub != nil {
		s.hub.Notify(ctx, userID, ws.EventTurnAppended, ws.TurnAppendedEvent{
			ConversationID: t.ConversationID,
			UserID:         userID,
			Seq:            t.Seq,
			Role:           string(t.Role),
			ResponseType:   responseType,
		})
	}
}

func (s *ChatService) emitRollover(ctx context.Context, userID, closedID string, conv *chat.Conversation) {
	if s.publisher != nil {
		payload, err := json.Marshal(events.ConversationRolledPayload{
			UserID:             userID,
			ClosedConversation: closedID,
			NewConversation:    conv.ID,
			MessageCount:       s.assembler.cap,
			Timestamp:          time.Now().UTC(),
		})
		if err == nil {
			if err := s.publisher.Publish(ctx, events.SubjectConversationRolled, payload); err != nil {
				s.log.Warn("publish rollover event failed", "error", err)
			}
		}
	}
	if s.hub != nil {
		s.hub.Notify(ctx, userID, ws.EventConversationRolled, ws.ConversationRolledEvent{
			UserID:             userID,
			ClosedConversation: closedID,
			NewConversation:    conv.ID,
		})
	}
}

func profileCacheKey(userID string) string { return "profile:" + userID }

// loadProfile reads the profile through the cache, falling back to the
// store. A missing profile is created lazily in memory; it is persisted
// only when the user answers the questionnaire.
func (s *ChatService) loadProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, profileCacheKey(userID)); err == nil && ok {
			var p profile.Profile
			if err := json.Unmarshal(data, &p); err == nil {
				return &p, nil
			}
		}
	}

	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return profile.New(userID), nil
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(p); err == nil {
			if err := s.cache.Set(ctx, profileCacheKey(userID), data, s.profileTTL); err != nil {
				s.log.Debug("profile cache set failed", "error", err)
			}
		}
	}
	return p, nil
}

func (s *ChatService) invalidateProfile(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, profileCacheKey(userID)); err != nil {
		s.log.Debug("profile cache delete failed", "error", err)
	}
}
