package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"helpdeskai/pkg/store"
)

// fakeGenerator answers classification prompts and reply prompts from a
// single respond function, recording every user prompt it sees.
type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	respond func(systemPrompt, userPrompt string) (string, error)
}

func (f *fakeGenerator) GenerateText(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, userPrompt)
	f.mu.Unlock()
	return f.respond(systemPrompt, userPrompt)
}

func (f *fakeGenerator) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.prompts))
	copy(out, f.prompts)
	return out
}

func isClassification(prompt string) bool {
	return strings.HasPrefix(prompt, "Is this query related to IT Support?")
}

func newTestApp(t *testing.T, respond func(systemPrompt, userPrompt string) (string, error)) (*App, *store.MemoryStore, *fakeGenerator) {
	t.Helper()
	mem := store.NewMemoryStore()
	gen := &fakeGenerator{respond: respond}
	a, err := New(Config{Store: mem, Generator: gen})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, mem, gen
}

func TestProcessMessageRefusesOffTopicQuery(t *testing.T) {
	a, mem, _ := newTestApp(t, func(_, prompt string) (string, error) {
		if isClassification(prompt) {
			return "Not IT Support", nil
		}
		return "should never be asked", nil
	})
	result, err := a.ProcessMessage(context.Background(), "u-1", "tell me a joke", nil)
	if err != nil {
		t.Fatalf("process message: %v", err)
	}
	if !result.Filtered {
		t.Fatalf("expected filtered result")
	}
	if result.Response != RefusalMessage {
		t.Fatalf("unexpected refusal text: %q", result.Response)
	}
	conversations, err := mem.ListConversationsByUser("u-1", 10)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(conversations) != 0 {
		t.Fatalf("filtered query must not create a conversation, got %d", len(conversations))
	}
}

func TestProcessMessageFailsOpenWhenClassifierErrors(t *testing.T) {
	a, _, _ := newTestApp(t, func(_, prompt string) (string, error) {
		if isClassification(prompt) {
			return "", errors.New("model unavailable")
		}
		return "try turning it off and on again", nil
	})
	result, err := a.ProcessMessage(context.Background(), "u-1", "laptop will not boot", nil)
	if err != nil {
		t.Fatalf("process message: %v", err)
	}
	if result.Filtered {
		t.Fatalf("classifier failure must not block the query")
	}
	if result.Response != "try turning it off and on again" {
		t.Fatalf("unexpected response: %q", result.Response)
	}
}

func TestProcessMessageFirstMessageCreatesConversation(t *testing.T) {
	a, mem, _ := newTestApp(t, func(_, prompt string) (string, error) {
		if isClassification(prompt) {
			return "IT Support", nil
		}
		return "have you tried reseating the cable?", nil
	})
	result, err := a.ProcessMessage(context.Background(), "u-1", "monitor flickers", nil)
	if err != nil {
		t.Fatalf("process message: %v", err)
	}
	if !strings.HasPrefix(result.Conversation.Title, "IT Support Chat ") {
		t.Fatalf("expected timestamped default title, got %q", result.Conversation.Title)
	}
	if result.Conversation.MessageCount != 2 {
		t.Fatalf("expected user + assistant turns counted, got %d", result.Conversation.MessageCount)
	}
	if !result.UserMessage.IsUser || result.AIMessage.IsUser {
		t.Fatalf("message roles mixed up: %+v %+v", result.UserMessage, result.AIMessage)
	}
	msgs, err := mem.ListMessages(result.Conversation.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(msgs))
	}
	if result.DeviceRegistered {
		t.Fatalf("no device was registered")
	}
}

func TestProcessMessageReusesActiveConversation(t *testing.T) {
	a, _, _ := newTestApp(t, func(_, prompt string) (string, error) {
		if isClassification(prompt) {
			return "IT Support", nil
		}
		return "ok", nil
	})
	first, err := a.ProcessMessage(context.Background(), "u-1", "vpn drops", nil)
	if err != nil {
		t.Fatalf("first message: %v", err)
	}
	second, err := a.ProcessMessage(context.Background(), "u-1", "still drops", nil)
	if err != nil {
		t.Fatalf("second message: %v", err)
	}
	if first.Conversation.ID != second.Conversation.ID {
		t.Fatalf("expected the active conversation to be reused")
	}
	if second.Conversation.MessageCount != 4 {
		t.Fatalf("expected 4 messages after two exchanges, got %d", second.Conversation.MessageCount)
	}
}

func TestProcessMessageEnrichesPromptWithDevice(t *testing.T) {
	a, _, gen := newTestApp(t, func(_, prompt string) (string, error) {
		if isClassification(prompt) {
			return "IT Support", nil
		}
		return "ok", nil
	})
	if _, _, err := a.RegisterDevice("u-1", "Lenovo", "T14"); err != nil {
		t.Fatalf("register device: %v", err)
	}
	result, err := a.ProcessMessage(context.Background(), "u-1", "fan is loud", nil)
	if err != nil {
		t.Fatalf("process message: %v", err)
	}
	if !result.DeviceRegistered {
		t.Fatalf("expected DeviceRegistered true")
	}
	prompts := gen.recorded()
	reply := prompts[len(prompts)-1]
	if !strings.Contains(reply, "Lenovo T14") {
		t.Fatalf("reply prompt missing device context: %q", reply)
	}
}

func TestProcessMessageUnknownDeviceFallback(t *testing.T) {
	a, _, gen := newTestApp(t, func(_, prompt string) (string, error) {
		if isClassification(prompt) {
			return "IT Support", nil
		}
		return "ok", nil
	})
	if _, err := a.ProcessMessage(context.Background(), "u-1", "email broken", nil); err != nil {
		t.Fatalf("process message: %v", err)
	}
	prompts := gen.recorded()
	reply := prompts[len(prompts)-1]
	if !strings.Contains(reply, "Unknown Unknown") {
		t.Fatalf("expected Unknown/Unknown fallback in prompt: %q", reply)
	}
}

func TestProcessMessageKeepsUserTurnOnGeneratorFailure(t *testing.T) {
	a, mem, _ := newTestApp(t, func(_, prompt string) (string, error) {
		if isClassification(prompt) {
			return "IT Support", nil
		}
		return "", errors.New("model unavailable")
	})
	_, err := a.ProcessMessage(context.Background(), "u-1", "printer jammed", nil)
	if err == nil {
		t.Fatalf("expected generation failure to propagate")
	}
	conversations, err := mem.ListConversationsByUser("u-1", 10)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(conversations) != 1 {
		t.Fatalf("expected the conversation to exist, got %d", len(conversations))
	}
	msgs, err := mem.ListMessages(conversations[0].ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 || !msgs[0].IsUser {
		t.Fatalf("user turn must survive assistant failure, got %d messages", len(msgs))
	}
}

func TestProcessMessageRejectsAttachmentWithoutObjectStore(t *testing.T) {
	a, _, _ := newTestApp(t, func(_, prompt string) (string, error) {
		if isClassification(prompt) {
			return "IT Support", nil
		}
		return "ok", nil
	})
	_, err := a.ProcessMessage(context.Background(), "u-1", "see screenshot", &ImageUpload{Data: []byte{1, 2, 3}, ContentType: "image/png"})
	if err == nil {
		t.Fatalf("expected attachment upload to fail without an object store")
	}
}

// fakeObjectStore records uploads and serves deterministic presigned URLs.
type fakeObjectStore struct {
	mu         sync.Mutex
	objects    map[string]string // key -> content type
	presignErr error
}

func (f *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: got %d, declared %d", len(data), size)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string]string)
	}
	f.objects[key] = contentType
	return nil
}

func (f *fakeObjectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[key]; !ok {
		return "", fmt.Errorf("no such object: %s", key)
	}
	return "https://objects.test/" + key, nil
}

func TestProcessMessageStoresAndResolvesAttachment(t *testing.T) {
	mem := store.NewMemoryStore()
	gen := &fakeGenerator{respond: func(_, prompt string) (string, error) {
		if isClassification(prompt) {
			return "IT Support", nil
		}
		return "try reseating the cable", nil
	}}
	objects := &fakeObjectStore{}
	a, err := New(Config{Store: mem, Generator: gen, Attachments: objects})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	result, err := a.ProcessMessage(context.Background(), "u-1", "see screenshot", &ImageUpload{Data: []byte("png-bytes"), ContentType: "image/png"})
	if err != nil {
		t.Fatalf("process message: %v", err)
	}
	att := result.UserMessage.Attachment
	if att == nil {
		t.Fatalf("expected user message to carry an attachment")
	}
	wantKey := "attachments/" + result.UserMessage.ID
	if att.Key != wantKey || att.ContentType != "image/png" {
		t.Fatalf("unexpected attachment %+v", att)
	}
	if ct, ok := objects.objects[wantKey]; !ok || ct != "image/png" {
		t.Fatalf("image not uploaded under %s (content type %q)", wantKey, ct)
	}

	msgs, err := a.ListMessages(context.Background(), result.Conversation.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Attachment == nil {
		t.Fatalf("expected user turn with attachment, got %d messages", len(msgs))
	}
	if msgs[0].Attachment.URL != "https://objects.test/"+wantKey {
		t.Fatalf("expected a resolved download URL, got %q", msgs[0].Attachment.URL)
	}

	// The URL is read-time only; the persisted record stays bare.
	stored, err := mem.ListMessages(result.Conversation.ID)
	if err != nil {
		t.Fatalf("list stored messages: %v", err)
	}
	if stored[0].Attachment == nil || stored[0].Attachment.URL != "" {
		t.Fatalf("persisted attachment must not carry a URL, got %+v", stored[0].Attachment)
	}
}

func TestListMessagesPresignFailureLeavesURLEmpty(t *testing.T) {
	mem := store.NewMemoryStore()
	gen := &fakeGenerator{respond: func(_, prompt string) (string, error) {
		if isClassification(prompt) {
			return "IT Support", nil
		}
		return "ok", nil
	}}
	objects := &fakeObjectStore{}
	a, err := New(Config{Store: mem, Generator: gen, Attachments: objects})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	result, err := a.ProcessMessage(context.Background(), "u-1", "see screenshot", &ImageUpload{Data: []byte{1, 2, 3}, ContentType: "image/png"})
	if err != nil {
		t.Fatalf("process message: %v", err)
	}
	objects.presignErr = errors.New("object store down")
	msgs, err := a.ListMessages(context.Background(), result.Conversation.ID)
	if err != nil {
		t.Fatalf("listing must not fail on presign errors: %v", err)
	}
	if msgs[0].Attachment == nil || msgs[0].Attachment.URL != "" {
		t.Fatalf("expected attachment without URL, got %+v", msgs[0].Attachment)
	}
}

func TestAppendToConversationClosed(t *testing.T) {
	a, _, _ := newTestApp(t, func(_, prompt string) (string, error) {
		return "ok", nil
	})
	conversation, err := a.CreateConversation("u-1", "old thread")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if _, err := a.CloseConversation(conversation.ID, "u-1"); err != nil {
		t.Fatalf("close conversation: %v", err)
	}
	_, _, err = a.AppendToConversation(context.Background(), conversation.ID, "u-1", "one more thing")
	if !errors.Is(err, store.ErrConversationClosed) {
		t.Fatalf("expected ErrConversationClosed, got %v", err)
	}
}

func TestProcessMessageValidation(t *testing.T) {
	a, _, _ := newTestApp(t, func(_, prompt string) (string, error) {
		return "ok", nil
	})
	if _, err := a.ProcessMessage(context.Background(), "", "hello", nil); err == nil {
		t.Fatalf("expected error for missing user id")
	}
	if _, err := a.ProcessMessage(context.Background(), "u-1", "  ", nil); err == nil {
		t.Fatalf("expected error for blank message")
	}
}
