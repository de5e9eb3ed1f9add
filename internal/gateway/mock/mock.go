// Package mock provides a recording [gateway.Messenger] and
// [gateway.Factory] for tests.
//
// Every call is appended to a shared log tagged with the token of the
// messenger that made it, so tests can assert which identity (bot or user)
// performed each Web API call:
//
//	f := mock.NewFactory()
//	f.Fail("Send", gateway.ErrMessageTooLong) // first Send fails, later ones succeed
//
//	// inject f into the system under test …
//
//	for _, c := range f.CallsFor("Send") { … }
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/slack-go/slack"

	"github.com/MrWong99/lingobridge/internal/gateway"
)

// Call is one recorded Web API call.
type Call struct {
	Method  string
	Token   string
	Channel string
	TS      string
	User    string
	Msg     gateway.Message
	Trigger string
	Modal   *slack.ModalViewRequest
	Home    *slack.HomeTabViewRequest
}

// Factory hands out recording messengers. It is safe for concurrent use.
type Factory struct {
	mu     sync.Mutex
	calls  []Call
	queued map[string][]error
	always map[string]error
	seq    int
}

var _ gateway.Factory = (*Factory)(nil)

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{queued: map[string][]error{}, always: map[string]error{}}
}

// For implements [gateway.Factory].
func (f *Factory) For(token string) gateway.Messenger {
	return &Messenger{f: f, token: token}
}

// Fail queues errs to be returned, one per call, by the next invocations of
// method. A nil entry lets that call succeed.
func (f *Factory) Fail(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued[method] = append(f.queued[method], errs...)
}

// FailAlways makes every invocation of method return err.
func (f *Factory) FailAlways(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.always[method] = err
}

// Calls returns every recorded call in order.
func (f *Factory) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsFor returns the recorded calls of method.
func (f *Factory) CallsFor(method string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears recorded calls and configured failures.
func (f *Factory) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.queued = map[string][]error{}
	f.always = map[string]error{}
}

func (f *Factory) record(c Call) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	f.seq++
	ts := fmt.Sprintf("1700000000.%06d", f.seq)

	if q := f.queued[c.Method]; len(q) > 0 {
		f.queued[c.Method] = q[1:]
		if q[0] != nil {
			return "", q[0]
		}
		return ts, nil
	}
	if err := f.always[c.Method]; err != nil {
		return "", err
	}
	return ts, nil
}

// Messenger records calls into its [Factory].
type Messenger struct {
	f     *Factory
	token string
}

var _ gateway.Messenger = (*Messenger)(nil)

// Send implements [gateway.Messenger].
func (m *Messenger) Send(_ context.Context, channel string, msg gateway.Message) (string, error) {
	return m.f.record(Call{Method: "Send", Token: m.token, Channel: channel, Msg: msg})
}

// Update implements [gateway.Messenger].
func (m *Messenger) Update(_ context.Context, channel, ts string, msg gateway.Message) error {
	_, err := m.f.record(Call{Method: "Update", Token: m.token, Channel: channel, TS: ts, Msg: msg})
	return err
}

// Delete implements [gateway.Messenger].
func (m *Messenger) Delete(_ context.Context, channel, ts string) error {
	_, err := m.f.record(Call{Method: "Delete", Token: m.token, Channel: channel, TS: ts})
	return err
}

// SendEphemeral implements [gateway.Messenger].
func (m *Messenger) SendEphemeral(_ context.Context, channel, user string, msg gateway.Message) error {
	_, err := m.f.record(Call{Method: "SendEphemeral", Token: m.token, Channel: channel, User: user, Msg: msg})
	return err
}

// OpenModal implements [gateway.Messenger].
func (m *Messenger) OpenModal(_ context.Context, triggerID string, view slack.ModalViewRequest) error {
	_, err := m.f.record(Call{Method: "OpenModal", Token: m.token, Trigger: triggerID, Modal: &view})
	return err
}

// PublishHome implements [gateway.Messenger].
func (m *Messenger) PublishHome(_ context.Context, user string, view slack.HomeTabViewRequest) error {
	_, err := m.f.record(Call{Method: "PublishHome", Token: m.token, User: user, Home: &view})
	return err
}
