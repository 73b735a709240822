// Package testutil provides common test utilities and helpers for CalCounter tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/BTreeMap/CalCounter/internal/genai"
	"github.com/BTreeMap/CalCounter/internal/models"
)

// Outbound message kinds recorded by FakeMessenger.
const (
	KindText     = "text"
	KindMenu     = "menu"
	KindPhoto    = "photo"
	KindDocument = "document"
)

// Sent is one message recorded by FakeMessenger.
type Sent struct {
	Kind     string
	To       string
	Text     string
	Menu     models.Menu
	Filename string
	Data     []byte
}

// Ack is one button acknowledgement recorded by FakeMessenger.
type Ack struct {
	Event models.Event
	Text  string
}

// FakeMessenger is an in-memory chat transport that records everything sent.
type FakeMessenger struct {
	mu      sync.Mutex
	sent    []Sent
	acks    []Ack
	events  chan models.Event
	SendErr error
}

// NewFakeMessenger creates a FakeMessenger with a buffered event channel.
func NewFakeMessenger() *FakeMessenger {
	return &FakeMessenger{events: make(chan models.Event, 100)}
}

func (f *FakeMessenger) record(s Sent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.sent = append(f.sent, s)
	return nil
}

func (f *FakeMessenger) SendText(ctx context.Context, to, text string) error {
	return f.record(Sent{Kind: KindText, To: to, Text: text})
}

func (f *FakeMessenger) SendMenu(ctx context.Context, to, text string, menu models.Menu) error {
	return f.record(Sent{Kind: KindMenu, To: to, Text: text, Menu: menu})
}

func (f *FakeMessenger) SendPhoto(ctx context.Context, to string, image []byte, caption string) error {
	return f.record(Sent{Kind: KindPhoto, To: to, Text: caption, Data: image})
}

func (f *FakeMessenger) SendDocument(ctx context.Context, to, filename string, data []byte, caption string) error {
	return f.record(Sent{Kind: KindDocument, To: to, Text: caption, Filename: filename, Data: data})
}

func (f *FakeMessenger) AckButton(ctx context.Context, evt models.Event, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, Ack{Event: evt, Text: text})
	return nil
}

func (f *FakeMessenger) Start(ctx context.Context) error { return nil }

func (f *FakeMessenger) Stop() error { return nil }

func (f *FakeMessenger) Events() <-chan models.Event { return f.events }

// Emit queues an inbound event.
func (f *FakeMessenger) Emit(evt models.Event) {
	f.events <- evt
}

// Sent returns a copy of every recorded message.
func (f *FakeMessenger) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// Acks returns a copy of every recorded acknowledgement.
func (f *FakeMessenger) Acks() []Ack {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Ack(nil), f.acks...)
}

// Last returns the most recent message, or the zero value when none was sent.
func (f *FakeMessenger) Last() Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return Sent{}
	}
	return f.sent[len(f.sent)-1]
}

// Texts returns the text of every recorded message in order.
func (f *FakeMessenger) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.Text)
	}
	return out
}

// Contains reports whether any recorded message contains substr.
func (f *FakeMessenger) Contains(substr string) bool {
	for _, t := range f.Texts() {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}

// Reset forgets recorded messages and acknowledgements.
func (f *FakeMessenger) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.acks = nil
}

// FakeExtractor returns canned results and counts calls.
type FakeExtractor struct {
	mu         sync.Mutex
	Nutrition  models.Nutrition
	Suggestion models.Suggestion
	Err        error
	calls      int
	lastInput  string
	lastReq    genai.SuggestRequest
}

func (f *FakeExtractor) result(input string) (models.Nutrition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastInput = input
	if f.Err != nil {
		return models.Nutrition{}, f.Err
	}
	return f.Nutrition, nil
}

func (f *FakeExtractor) ExtractFromImage(ctx context.Context, image []byte, caption string) (models.Nutrition, error) {
	return f.result(caption)
}

func (f *FakeExtractor) ExtractFromText(ctx context.Context, text string) (models.Nutrition, error) {
	return f.result(text)
}

func (f *FakeExtractor) Consult(ctx context.Context, text string) (models.Nutrition, error) {
	return f.result(text)
}

func (f *FakeExtractor) Suggest(ctx context.Context, req genai.SuggestRequest) (models.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	if f.Err != nil {
		return models.Suggestion{}, f.Err
	}
	return f.Suggestion, nil
}

// Calls returns the number of extraction calls made.
func (f *FakeExtractor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastInput returns the text or caption of the last extraction call.
func (f *FakeExtractor) LastInput() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastInput
}

// LastSuggestRequest returns the request of the last Suggest call.
func (f *FakeExtractor) LastSuggestRequest() genai.SuggestRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}
