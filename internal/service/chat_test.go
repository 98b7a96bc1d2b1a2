package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/redmag-edu/mentoria/internal/adapter/otel"
	"github.com/redmag-edu/mentoria/internal/domain"
	"github.com/redmag-edu/mentoria/internal/domain/chat"
	"github.com/redmag-edu/mentoria/internal/domain/content"
	"github.com/redmag-edu/mentoria/internal/domain/profile"
	"github.com/redmag-edu/mentoria/internal/port/vectorindex"
	"github.com/redmag-edu/mentoria/internal/resilience"
)

const (
	routerDirectPlan = `{"intent":"saludo","analysis":"pregunta simple","action":{"type":"direct_answer","data":{"response_text":"Con gusto le explico."}}}`
	routerAskPlan    = `{"intent":"incompleto","analysis":"falta contexto","action":{"type":"ask_for_information","data":{"response_text":"Necesito saber más.","questions":[{"field_name":"nivel","question_text":"¿Qué nivel?","options":[{"label":"Primaria","value":"primaria"}]}]}}}`
	routerDeepPlan   = `{"intent":"busqueda","analysis":"requiere análisis","action":{"type":"needs_deep_analysis","data":{"selected_context_keys":["nueva_escuela_mexicana"]}}}`
	specDirectPlan   = `{"type":"direct_answer","data":{"response_text":"Análisis completo de su consulta."}}`
	specSearchPlan   = `{"type":"vector_search","data":{"query":"planeaciones de matemáticas","intro_text":"Encontré estos materiales:"}}`
)

type testEnv struct {
	store *mockStore
	llm   *mockLLM
	index *mockIndex
	cache *mockCache
	svc   *ChatService
}

func newTestEnv(t *testing.T, responses ...string) *testEnv {
	t.Helper()
	log := slog.New(slog.DiscardHandler)

	kb, err := LoadKnowledgeBase()
	if err != nil {
		t.Fatalf("load knowledge base: %v", err)
	}
	metrics, err := otel.NewMetrics()
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	st := newMockStore()
	ml := &mockLLM{responses: responses}
	idx := newMockIndex()
	c := newMockCache()

	router := NewRouter(ml, kb, "router-model", 1024, metrics, log)
	specialist := NewSpecialist(ml, idx, kb, "specialist-model", "embed-model", 1024, 5, metrics, log)
	assembler := NewContextAssembler(st, chat.WindowSize, chat.TurnCap, log)
	svc := NewChatService(st, c, assembler, router, specialist, nil, nil, metrics, time.Minute, log)

	return &testEnv{store: st, llm: ml, index: idx, cache: c, svc: svc}
}

// seedConversation creates a conversation with one prior exchange so the
// next message is not treated as the first.
func (e *testEnv) seedConversation(t *testing.T, userID string) *chat.Conversation {
	t.Helper()
	ctx := context.Background()
	conv, err := e.store.CreateConversation(ctx, userID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if _, err := e.store.AppendTurn(ctx, &chat.Turn{ConversationID: conv.ID, Role: chat.RoleUser, Content: "Hola"}); err != nil {
		t.Fatalf("seed user turn: %v", err)
	}
	if _, err := e.store.AppendTurn(ctx, &chat.Turn{ConversationID: conv.ID, Role: chat.RoleAssistant, Kind: chat.TypeText, Content: "Hola, ¿en qué le ayudo?"}); err != nil {
		t.Fatalf("seed assistant turn: %v", err)
	}
	conv.MessageCount = 1
	return conv
}

func TestHandleMessageValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.HandleMessage(ctx, chat.Request{Message: "hola"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing user_id: got %v, want validation error", err)
	}
	if _, err := env.svc.HandleMessage(ctx, chat.Request{UserID: "u1"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty message: got %v, want validation error", err)
	}
}

func TestHandleMessageFirstMessageShowsWelcome(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.svc.HandleMessage(context.Background(), chat.Request{UserID: "u1", Message: "Hola"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Response.Type != chat.TypeWelcome {
		t.Fatalf("response type = %q, want welcome", res.Response.Type)
	}
	if len(res.Response.Welcome.Options) != 8 {
		t.Fatalf("welcome options = %d, want 8", len(res.Response.Welcome.Options))
	}
	if env.llm.completeCalls() != 0 {
		t.Fatalf("welcome made %d model calls, want 0", env.llm.completeCalls())
	}
	// Both turns persisted.
	turns, _, err := env.store.TurnPage(context.Background(), res.ConversationID, 1, 10)
	if err != nil {
		t.Fatalf("turn page: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("persisted turns = %d, want 2", len(turns))
	}
	if turns[1].Kind != chat.TypeWelcome {
		t.Fatalf("assistant turn kind = %q, want welcome", turns[1].Kind)
	}
}

func TestHandleMessageDirectAnswer(t *testing.T) {
	env := newTestEnv(t, routerDirectPlan)
	conv := env.seedConversation(t, "u1")

	res, err := env.svc.HandleMessage(context.Background(), chat.Request{UserID: "u1", Message: "¿Qué es la NEM?"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.ConversationID != conv.ID {
		t.Fatalf("conversation = %q, want %q", res.ConversationID, conv.ID)
	}
	if res.Response.Type != chat.TypeText {
		t.Fatalf("response type = %q, want text", res.Response.Type)
	}
	if res.Response.Text.Text != "Con gusto le explico." {
		t.Fatalf("unexpected text: %q", res.Response.Text.Text)
	}
	if env.llm.completeCalls() != 1 {
		t.Fatalf("model calls = %d, want 1", env.llm.completeCalls())
	}
}

func TestHandleMessageClarifyReturnsButtons(t *testing.T) {
	env := newTestEnv(t, routerAskPlan)
	env.seedConversation(t, "u1")

	res, err := env.svc.HandleMessage(context.Background(), chat.Request{UserID: "u1", Message: "ayúdame con mi clase"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Response.Type != chat.TypeButtons {
		t.Fatalf("response type = %q, want buttons", res.Response.Type)
	}
	if len(res.Response.Buttons.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(res.Response.Buttons.Questions))
	}
	if res.Response.Buttons.Questions[0].Field != "nivel" {
		t.Fatalf("question field = %q, want nivel", res.Response.Buttons.Questions[0].Field)
	}
}

func TestHandleMessageEscalatesToSpecialist(t *testing.T) {
	env := newTestEnv(t, routerDeepPlan, specDirectPlan)
	env.seedConversation(t, "u1")

	res, err := env.svc.HandleMessage(context.Background(), chat.Request{UserID: "u1", Message: "Explícame los ejes articuladores a fondo"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Response.Type != chat.TypeText {
		t.Fatalf("response type = %q, want text", res.Response.Type)
	}
	if res.Response.Text.Text != "Análisis completo de su consulta." {
		t.Fatalf("unexpected text: %q", res.Response.Text.Text)
	}
	if env.llm.completeCalls() != 2 {
		t.Fatalf("model calls = %d, want 2 (router + specialist)", env.llm.completeCalls())
	}
}

func TestHandleMessageVectorSearchReturnsCards(t *testing.T) {
	env := newTestEnv(t, routerDeepPlan, specSearchPlan)
	env.seedConversation(t, "u1")
	env.index.matches = []vectorindex.Match{
		{ID: "c1", Score: 0.92, Item: content.Item{Title: "Planeación 5to", Type: content.TypePlaneacion, Body: "cuerpo largo"}},
		{ID: "c2", Score: 0.88, Item: content.Item{ID: "c2", Title: "MED fracciones", Type: content.TypeMED}},
	}

	res, err := env.svc.HandleMessage(context.Background(), chat.Request{UserID: "u1", Message: "Busca planeaciones de matemáticas"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Response.Type != chat.TypeVectorSearch {
		t.Fatalf("response type = %q, want vector_search", res.Response.Type)
	}
	vs := res.Response.VectorSearch
	if vs.TotalResults != 2 || len(vs.Items) != 2 {
		t.Fatalf("results = %d/%d, want 2/2", vs.TotalResults, len(vs.Items))
	}
	if vs.Items[0].ID != "c1" {
		t.Fatalf("item id = %q, want match id fallback c1", vs.Items[0].ID)
	}
	if vs.Items[0].Body != "" {
		t.Fatal("content cards must not carry the long-form body")
	}
	if vs.IntroText != "Encontré estos materiales:" {
		t.Fatalf("intro = %q", vs.IntroText)
	}
}

func TestHandleMessageSearchFailureDegradesToText(t *testing.T) {
	env := newTestEnv(t, routerDeepPlan, specSearchPlan)
	env.seedConversation(t, "u1")
	env.index.failSearch = errors.New("index down")

	res, err := env.svc.HandleMessage(context.Background(), chat.Request{UserID: "u1", Message: "Busca materiales"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Response.Type != chat.TypeText {
		t.Fatalf("response type = %q, want degraded text", res.Response.Type)
	}
}

func TestHandleMessageBreakerOpenApologizes(t *testing.T) {
	env := newTestEnv(t)
	env.seedConversation(t, "u1")
	env.llm.failComplete = resilience.ErrCircuitOpen

	res, err := env.svc.HandleMessage(context.Background(), chat.Request{UserID: "u1", Message: "hola de nuevo"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Response.Type != chat.TypeText {
		t.Fatalf("response type = %q, want text", res.Response.Type)
	}
	if !strings.Contains(res.Response.Text.Text, "disculpa") {
		t.Fatalf("expected apology, got %q", res.Response.Text.Text)
	}
}

func TestHandleMessageStoreFailureIsFatal(t *testing.T) {
	env := newTestEnv(t, routerDirectPlan)
	env.seedConversation(t, "u1")
	env.store.failAppend = errors.New("disk full")

	if _, err := env.svc.HandleMessage(context.Background(), chat.Request{UserID: "u1", Message: "hola"}); err == nil {
		t.Fatal("expected error when persistence fails")
	}
}

func TestHandleMessageCapMarksRolloverPending(t *testing.T) {
	env := newTestEnv(t, routerDirectPlan)
	conv := env.seedConversation(t, "u1")
	env.store.conversations[conv.ID].MessageCount = chat.TurnCap - 1

	if _, err := env.svc.HandleMessage(context.Background(), chat.Request{UserID: "u1", Message: "última pregunta"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, err := env.store.GetConversation(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if got.Status != chat.StatusRolloverPending {
		t.Fatalf("status = %q, want rollover_pending", got.Status)
	}
}

func TestHandleMessageRolloverStartsFreshConversation(t *testing.T) {
	env := newTestEnv(t, routerDirectPlan)
	conv := env.seedConversation(t, "u1")
	env.store.conversations[conv.ID].MessageCount = chat.TurnCap
	env.store.conversations[conv.ID].Status = chat.StatusRolloverPending

	// Profile survives rollover.
	p := profile.New("u1")
	p.Set(profile.FieldName, "Laura")
	if err := env.store.UpsertProfile(context.Background(), p); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	res, err := env.svc.HandleMessage(context.Background(), chat.Request{UserID: "u1", Message: "sigo con dudas"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.ConversationID == conv.ID {
		t.Fatal("expected a new conversation after rollover")
	}
	// The message is routed, not greeted again.
	if res.Response.Type != chat.TypeText {
		t.Fatalf("response type = %q, want routed text", res.Response.Type)
	}
	old, err := env.store.GetConversation(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("get old conversation: %v", err)
	}
	if old.Status != chat.StatusClosed {
		t.Fatalf("old status = %q, want closed", old.Status)
	}
	kept, err := env.store.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if kept.Get(profile.FieldName) != "Laura" {
		t.Fatal("profile must survive rollover unchanged")
	}
}

func TestHandleMessageConfiguredCapTriggersRollover(t *testing.T) {
	env := newTestEnv(t, routerDirectPlan)
	log := slog.New(slog.DiscardHandler)
	assembler := NewContextAssembler(env.store, chat.WindowSize, 2, log)
	svc := NewChatService(env.store, env.cache, assembler, env.svc.router, env.svc.specialist, nil, nil, env.svc.metrics, time.Minute, log)

	conv := env.seedConversation(t, "u1")
	env.store.conversations[conv.ID].MessageCount = 2

	res, err := svc.HandleMessage(context.Background(), chat.Request{UserID: "u1", Message: "tercera pregunta"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.ConversationID == conv.ID {
		t.Fatal("a conversation at the configured cap must roll over")
	}
	old, err := env.store.GetConversation(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("get old conversation: %v", err)
	}
	if old.Status != chat.StatusClosed {
		t.Fatalf("old status = %q, want closed", old.Status)
	}
}

func TestHandleMessageMenuPerfilShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	env.seedConversation(t, "u1")

	res, err := env.svc.HandleMessage(context.Background(), chat.Request{
		UserID:   "u1",
		UserData: []chat.DataInput{{Field: "menu_option", Value: MenuPerfil}},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Response.Type != chat.TypeButtons {
		t.Fatalf("response type = %q, want buttons", res.Response.Type)
	}
	if len(res.Response.Buttons.Questions) != 3 {
		t.Fatalf("profile questions = %d, want 3", len(res.Response.Buttons.Questions))
	}
	if env.llm.completeCalls() != 0 {
		t.Fatalf("menu selection made %d model calls, want 0", env.llm.completeCalls())
	}
}

func TestHandleMessageMenuOtroAsksForText(t *testing.T) {
	env := newTestEnv(t)
	env.seedConversation(t, "u1")

	res, err := env.svc.HandleMessage(context.Background(), chat.Request{
		UserID:   "u1",
		UserData: []chat.DataInput{{Field: "menu_option", Value: MenuOtro}},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Response.Type != chat.TypeTextInput {
		t.Fatalf("response type = %q, want text_input", res.Response.Type)
	}
	if env.llm.completeCalls() != 0 {
		t.Fatalf("menu selection made %d model calls, want 0", env.llm.completeCalls())
	}
}

func TestHandleMessageMenuContentOptionRoutes(t *testing.T) {
	env := newTestEnv(t, routerDeepPlan, specSearchPlan)
	conv := env.seedConversation(t, "u1")

	res, err := env.svc.HandleMessage(context.Background(), chat.Request{
		UserID:   "u1",
		UserData: []chat.DataInput{{Field: "menu_option", Value: MenuMEDs}},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if env.llm.completeCalls() != 2 {
		t.Fatalf("model calls = %d, want 2", env.llm.completeCalls())
	}
	if res.Response.Type != chat.TypeText && res.Response.Type != chat.TypeVectorSearch {
		t.Fatalf("unexpected response type %q", res.Response.Type)
	}
	userTurns := env.store.userTurns(conv.ID)
	last := userTurns[len(userTurns)-1]
	if last.Content != "Seleccionó: meds" {
		t.Fatalf("user turn content = %q", last.Content)
	}
}

func TestHandleMessageProfileAnswersUpdateProfile(t *testing.T) {
	env := newTestEnv(t, routerDirectPlan)
	env.seedConversation(t, "u1")

	res, err := env.svc.HandleMessage(context.Background(), chat.Request{
		UserID: "u1",
		UserData: []chat.DataInput{
			{Field: profile.FieldLevel, Value: "primaria"},
			{Field: profile.FieldGrade, Value: "quinto"},
		},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Response.Type != chat.TypeText {
		t.Fatalf("response type = %q, want text", res.Response.Type)
	}
	p, err := env.store.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.Get(profile.FieldLevel) != "primaria" || p.Get(profile.FieldGrade) != "quinto" {
		t.Fatalf("profile fields not persisted: %v", p.Fields)
	}
}

func TestHandleMessageNumericMenuReplyNeedsNoModel(t *testing.T) {
	env := newTestEnv(t)

	// First message: welcome menu.
	first, err := env.svc.HandleMessage(context.Background(), chat.Request{UserID: "u1", Message: "Hola"})
	if err != nil {
		t.Fatalf("first handle: %v", err)
	}
	if first.Response.Type != chat.TypeWelcome {
		t.Fatalf("first response = %q, want welcome", first.Response.Type)
	}

	// "7" selects the seventh option: profile setup.
	res, err := env.svc.HandleMessage(context.Background(), chat.Request{UserID: "u1", Message: "7"})
	if err != nil {
		t.Fatalf("second handle: %v", err)
	}
	if res.Response.Type != chat.TypeButtons {
		t.Fatalf("response type = %q, want profile buttons", res.Response.Type)
	}
	if env.llm.completeCalls() != 0 {
		t.Fatalf("numeric menu reply made %d model calls, want 0", env.llm.completeCalls())
	}
}

func TestHandleMessageProfileCachedAcrossTurns(t *testing.T) {
	env := newTestEnv(t, routerDirectPlan, routerDirectPlan)
	env.seedConversation(t, "u1")

	p := profile.New("u1")
	p.Set(profile.FieldName, "Marco")
	if err := env.store.UpsertProfile(context.Background(), p); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	if _, err := env.svc.HandleMessage(context.Background(), chat.Request{UserID: "u1", Message: "hola"}); err != nil {
		t.Fatalf("first handle: %v", err)
	}
	if _, ok, _ := env.cache.Get(context.Background(), profileCacheKey("u1")); !ok {
		t.Fatal("profile not cached after first turn")
	}
}
