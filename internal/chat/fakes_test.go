package chat

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeStorage is an in-memory Storage
type fakeStorage struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{data: make(map[string]string)}
}

func (f *fakeStorage) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.data[key]
	if !ok {
		return "", fmt.Errorf("key not found: %s", key)
	}
	return value, nil
}

func (f *fakeStorage) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeStorage) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = make(map[string]string)
	return nil
}

func (f *fakeStorage) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

// fakeUI records everything the engine pushes at the customer
type fakeUI struct {
	mu       sync.Mutex
	renders  []renderedLine
	controls []bool
	headers  []string
	typing   []typingEvent
}

type renderedLine struct {
	text        string
	category    string
	displayName string
}

type typingEvent struct {
	displayName string
	typing      bool
}

func newFakeUI() *fakeUI { return &fakeUI{} }

func (f *fakeUI) Render(text, category string, _ time.Time, displayName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders = append(f.renders, renderedLine{text, category, displayName})
}

func (f *fakeUI) SetControlsEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, enabled)
}

func (f *fakeUI) SetHeaderMode(mode string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers = append(f.headers, mode)
}

func (f *fakeUI) SetTypingIndicator(displayName string, typing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, typingEvent{displayName, typing})
}

func (f *fakeUI) typingEvents() []typingEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]typingEvent, len(f.typing))
	copy(out, f.typing)
	return out
}

func (f *fakeUI) rendered() []renderedLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]renderedLine, len(f.renders))
	copy(out, f.renders)
	return out
}

func (f *fakeUI) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders = nil
	f.controls = nil
	f.headers = nil
	f.typing = nil
}

// fakeLeads counts submissions
type fakeLeads struct {
	mu    sync.Mutex
	leads []*Lead
}

func newFakeLeads() *fakeLeads { return &fakeLeads{} }

func (f *fakeLeads) Submit(_ context.Context, lead *Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads = append(f.leads, lead)
	return nil
}

func (f *fakeLeads) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.leads)
}

// fakeHandler records transport callbacks
type fakeHandler struct {
	mu              sync.Mutex
	opens           int
	graceful        int
	superseded      int
	reconnecting    int
	reconnectFailed int
	fatal           []error
}

func newFakeHandler() *fakeHandler { return &fakeHandler{} }

func (f *fakeHandler) HandleOpen() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
}

func (f *fakeHandler) HandleNotification(*Envelope) error { return nil }
func (f *fakeHandler) HandleError(*ErrorBody)             {}

func (f *fakeHandler) HandleFatal(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fatal = append(f.fatal, err)
}

func (f *fakeHandler) HandleGracefulClose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graceful++
}

func (f *fakeHandler) HandleSuperseded() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.superseded++
}

func (f *fakeHandler) HandleReconnecting(int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnecting++
}

func (f *fakeHandler) HandleReconnectFailed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnectFailed++
}

func (f *fakeHandler) counts() (graceful, superseded, reconnecting, failed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.graceful, f.superseded, f.reconnecting, f.reconnectFailed
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
