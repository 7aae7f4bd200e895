package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sentientlabs/companion-sdk/core"
	"github.com/sentientlabs/companion-sdk/memory"
	"github.com/sentientlabs/companion-sdk/memory/checkpoint/mem"
	"github.com/sentientlabs/companion-sdk/memory/embedder/mock"
	"github.com/sentientlabs/companion-sdk/memory/index/chromem"
	logsqlite "github.com/sentientlabs/companion-sdk/memory/log/sqlite"
	"github.com/sentientlabs/companion-sdk/persona"
	"github.com/sentientlabs/companion-sdk/pipeline"
)

// fakeModel scripts replies and records every message sequence it
// was invoked with.
type fakeModel struct {
	replies []string
	err     error
	calls   [][]pipeline.Message
}

func (m *fakeModel) Complete(ctx context.Context, messages []pipeline.Message) (string, error) {
	m.calls = append(m.calls, messages)
	if m.err != nil {
		return "", m.err
	}
	reply := "Hello!"
	if len(m.replies) > 0 {
		reply = m.replies[0]
		if len(m.replies) > 1 {
			m.replies = m.replies[1:]
		}
	}
	return reply, nil
}

func testPersona() persona.Config {
	return persona.Config{
		Name:       "Juniper",
		Identity:   "Juniper, a quick-witted concierge",
		Traits:     persona.Traits{Humor: 5, Empathy: 3, Assertiveness: 3, Sarcasm: 5},
		Moderation: persona.DefaultModeration(),
	}
}

func newTestService(t *testing.T, model pipeline.LanguageModel) (*pipeline.Service, *memory.Manager) {
	t.Helper()

	journal, err := logsqlite.Open(filepath.Join(t.TempDir(), "messages.db"))
	if err != nil {
		t.Fatalf("Open log: %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	checkpoints := mem.New()
	index := chromem.New(mock.New())

	factory := func(key memory.ConversationKey) *memory.Manager {
		return memory.NewManager(key, checkpoints, index, journal, nil)
	}
	personas := pipeline.StaticPersonas{"c1": testPersona()}
	svc := pipeline.NewService(pipeline.NewEngine(model), personas, factory)
	return svc, factory(memory.NewKey("c1", "u1"))
}

func TestSendMessage_HistoryReachesModel(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{replies: []string{"Hi, lovely to meet you.", "You said that already!"}}
	svc, _ := newTestService(t, model)
	key := memory.NewKey("c1", "u1")

	first, err := svc.SendMessage(ctx, key, "hello")
	if err != nil {
		t.Fatalf("First send failed: %v", err)
	}
	if first.Text != "Hi, lovely to meet you." {
		t.Errorf("Unexpected first reply: %q", first.Text)
	}

	if _, err := svc.SendMessage(ctx, key, "hello"); err != nil {
		t.Fatalf("Second send failed: %v", err)
	}

	if len(model.calls) != 2 {
		t.Fatalf("Expected 2 model calls, got %d", len(model.calls))
	}

	second := model.calls[1]
	if second[0].Role != pipeline.RoleSystem {
		t.Fatalf("First message must be the system instruction, got %q", second[0].Role)
	}
	if !strings.Contains(second[0].Content, "Sarcasm: 5/5") {
		t.Errorf("System message missing persona traits:\n%s", second[0].Content)
	}

	// Both prior turns must be in the second prompt, in order, before
	// the new utterance.
	var sawUser, sawAssistant bool
	for _, msg := range second[1 : len(second)-1] {
		if msg.Role == pipeline.RoleUser && msg.Content == "hello" {
			sawUser = true
		}
		if msg.Role == pipeline.RoleAssistant && msg.Content == "Hi, lovely to meet you." {
			sawAssistant = true
		}
	}
	if !sawUser || !sawAssistant {
		t.Errorf("Second prompt missing prior turns (user=%v assistant=%v): %+v", sawUser, sawAssistant, second)
	}
	last := second[len(second)-1]
	if last.Role != pipeline.RoleUser || last.Content != "hello" {
		t.Errorf("Prompt must end with the new utterance, got %+v", last)
	}
}

func TestSendMessage_ProviderFailureDegrades(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{err: &core.ProviderError{Op: "messages.new", Err: errors.New("quota exceeded")}}
	svc, mgr := newTestService(t, model)
	key := memory.NewKey("c1", "u1")

	result, err := svc.SendMessage(ctx, key, "are you there?")
	if err != nil {
		t.Fatalf("SendMessage must absorb provider failures: %v", err)
	}
	if result.Text != pipeline.Fallback {
		t.Errorf("Expected fallback text, got %q", result.Text)
	}
	if result.ElapsedMs < 0 {
		t.Errorf("Elapsed time must be non-negative, got %d", result.ElapsedMs)
	}

	stats, err := mgr.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.TotalMessages != 0 {
		t.Errorf("Failed attempt must not be recorded, found %d turns", stats.TotalMessages)
	}
}

func TestSendMessage_PersistsExchangeInOrder(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{replies: []string{"  padded reply \n"}}
	svc, mgr := newTestService(t, model)
	key := memory.NewKey("c1", "u1")

	result, err := svc.SendMessage(ctx, key, "trim me")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if result.Text != "padded reply" {
		t.Errorf("Whitespace not trimmed: %q", result.Text)
	}

	turns, err := mgr.RecentHistory(ctx, 10)
	if err != nil {
		t.Fatalf("RecentHistory failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("Expected user+assistant turns, got %d", len(turns))
	}
	if turns[0].Role != core.RoleUser || turns[0].Content != "trim me" {
		t.Errorf("User turn first, got %+v", turns[0])
	}
	if turns[1].Role != core.RoleAssistant || turns[1].Content != "padded reply" {
		t.Errorf("Assistant turn second, got %+v", turns[1])
	}
}

func TestSendMessage_ValidatesBeforeCollaborators(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{}
	svc, _ := newTestService(t, model)
	key := memory.NewKey("c1", "u1")

	var verr *core.ValidationError
	if _, err := svc.SendMessage(ctx, key, ""); !errors.As(err, &verr) {
		t.Errorf("Empty utterance should fail validation, got %v", err)
	}
	if _, err := svc.SendMessage(ctx, key, strings.Repeat("x", 10001)); !errors.As(err, &verr) {
		t.Errorf("Oversized utterance should fail validation, got %v", err)
	}
	if len(model.calls) != 0 {
		t.Errorf("Model must not be invoked for invalid input, got %d calls", len(model.calls))
	}
}

func TestSendMessage_UnknownCompanion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeModel{})

	var nferr *core.NotFoundError
	_, err := svc.SendMessage(ctx, memory.NewKey("ghost", "u1"), "hello?")
	if !errors.As(err, &nferr) {
		t.Errorf("Expected NotFoundError for unknown companion, got %v", err)
	}
}

func TestSendMessage_CancelledBeforeInvokeWritesNothing(t *testing.T) {
	model := &fakeModel{}
	svc, mgr := newTestService(t, model)
	key := memory.NewKey("c1", "u1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The model honors cancellation; the pipeline degrades and the
	// post-finalize persistence step never runs.
	model.err = context.Canceled
	result, err := svc.SendMessage(ctx, key, "too late")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if result.Text != pipeline.Fallback {
		t.Errorf("Expected fallback on cancellation, got %q", result.Text)
	}

	stats, _ := mgr.Statistics(context.Background())
	if stats.TotalMessages != 0 {
		t.Errorf("Cancellation must be side-effect-free, found %d turns", stats.TotalMessages)
	}
}

func TestGetHistoryPaging(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{replies: []string{"r1", "r2", "r3"}}
	svc, _ := newTestService(t, model)
	key := memory.NewKey("c1", "u1")

	for _, text := range []string{"q1", "q2", "q3"} {
		if _, err := svc.SendMessage(ctx, key, text); err != nil {
			t.Fatalf("SendMessage %q failed: %v", text, err)
		}
	}

	turns, total, err := svc.GetHistory(ctx, key, 2, 0)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if total != 6 {
		t.Errorf("Expected 6 total turns, got %d", total)
	}
	if len(turns) != 2 {
		t.Fatalf("Expected page of 2, got %d", len(turns))
	}
	if turns[1].Content != "r3" {
		t.Errorf("Expected newest page to end with r3, got %q", turns[1].Content)
	}
}

func TestClearHistoryThenStatistics(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{}
	svc, _ := newTestService(t, model)
	key := memory.NewKey("c1", "u1")

	if _, err := svc.SendMessage(ctx, key, "remember this"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if err := svc.ClearHistory(ctx, key); err != nil {
		t.Fatalf("ClearHistory failed: %v", err)
	}

	stats, err := svc.GetStatistics(ctx, key)
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if stats.TotalMessages != 0 || stats.HasCheckpoint {
		t.Errorf("Conversation not fully cleared: %+v", stats)
	}

	results, err := svc.Search(ctx, key, "remember", 5)
	if err != nil {
		t.Fatalf("Search after clear failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Cleared content leaked through search: %v", results)
	}
}

func TestSearchFindsPastTurns(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{replies: []string{"noted"}}
	svc, _ := newTestService(t, model)
	key := memory.NewKey("c1", "u1")

	if _, err := svc.SendMessage(ctx, key, "my cat is named Biscuit"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	results, err := svc.Search(ctx, key, "my cat is named Biscuit", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	found := false
	for _, text := range results {
		if text == "my cat is named Biscuit" {
			found = true
		}
	}
	if !found {
		t.Errorf("Inserted turn not retrievable: %v", results)
	}
}
