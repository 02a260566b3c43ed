package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
)

type sent struct {
	kind    protocol.Kind
	payload any
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (s *recordingSender) Send(kind protocol.Kind, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sent{kind: kind, payload: payload})
	return nil
}

func (s *recordingSender) all() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sent, len(s.sent))
	copy(out, s.sent)
	return out
}

type countingObserver struct {
	mu       sync.Mutex
	received map[protocol.Kind]int
	outcomes map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{received: map[protocol.Kind]int{}, outcomes: map[string]int{}}
}

func (o *countingObserver) RequestReceived(kind protocol.Kind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.received[kind]++
}

func (o *countingObserver) ResponseSent(_ protocol.Kind, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[outcome]++
}

func request(t *testing.T, kind protocol.Kind, payload any) protocol.Action {
	t.Helper()
	action := protocol.Action{Type: kind}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		action.Payload = raw
	}
	return action
}

func TestDispatchResolves(t *testing.T) {
	sender := &recordingSender{}
	d := New(Handlers{
		AddMedia: func(ctx context.Context, resolve func(protocol.AddMediaData), reject Reject, extra protocol.AddMediaExtra) {
			resolve(protocol.AddMediaData{UID: "m1", FileName: extra.AcceptedExtensions[0]})
		},
		FormFields: func(ctx context.Context, resolve func([]protocol.FormFieldsOption), reject Reject) {
			resolve([]protocol.FormFieldsOption{{Title: "Email", Value: "email"}})
		},
		FormAction: func(ctx context.Context, resolve func(string), reject Reject) {
			resolve("https://forms.example.com/submit")
		},
		RichText: func(ctx context.Context, resolve func(protocol.DynamicContentOption), reject Reject) {
			resolve(protocol.DynamicContentOption{Label: "Name", Placeholder: "{{name}}"})
		},
		Trigger: func(ctx context.Context, resolve func(string), reject Reject, extra protocol.TriggerExtra) {
			resolve("clicked " + string(extra.Type))
		},
	}, sender)

	ctx := context.Background()
	require.NoError(t, d.Dispatch(ctx, request(t, protocol.KindAddMedia, protocol.AddMediaExtra{AcceptedExtensions: []string{"png"}})))
	require.NoError(t, d.Dispatch(ctx, request(t, protocol.KindFormFields, nil)))
	require.NoError(t, d.Dispatch(ctx, request(t, protocol.KindFormAction, nil)))
	require.NoError(t, d.Dispatch(ctx, request(t, protocol.KindDCRichText, nil)))
	require.NoError(t, d.Dispatch(ctx, request(t, protocol.KindTrigger, protocol.TriggerExtra{Type: "Button"})))
	d.Wait()

	got := map[protocol.Kind]any{}
	for _, s := range sender.all() {
		got[s.kind] = s.payload
	}
	assert.Len(t, got, 5)
	assert.Equal(t, protocol.AddMediaData{UID: "m1", FileName: "png"}, got[protocol.KindAddMediaRes])
	assert.Equal(t, []protocol.FormFieldsOption{{Title: "Email", Value: "email"}}, got[protocol.KindFormFieldsRes])
	assert.Equal(t, "https://forms.example.com/submit", got[protocol.KindFormActionRes])
	assert.Equal(t, protocol.DynamicContentOption{Label: "Name", Placeholder: "{{name}}"}, got[protocol.KindDCRichTextRes])
	assert.Equal(t, "clicked Button", got[protocol.KindTriggerRes])
}

func TestDispatchRejects(t *testing.T) {
	sender := &recordingSender{}
	d := New(Handlers{
		FormAction: func(ctx context.Context, resolve func(string), reject Reject) {
			reject("integration offline")
		},
	}, sender)

	require.NoError(t, d.Dispatch(context.Background(), request(t, protocol.KindFormAction, nil)))
	d.Wait()

	require.Len(t, sender.all(), 1)
	assert.Equal(t, sent{kind: protocol.KindFormActionRej, payload: "integration offline"}, sender.all()[0])
}

func TestDispatchAnswersOnce(t *testing.T) {
	sender := &recordingSender{}
	obs := newCountingObserver()
	d := New(Handlers{
		FormAction: func(ctx context.Context, resolve func(string), reject Reject) {
			resolve("first")
			resolve("second")
			reject("too late")
		},
	}, sender, WithObserver(obs))

	require.NoError(t, d.Dispatch(context.Background(), request(t, protocol.KindFormAction, nil)))
	d.Wait()

	require.Len(t, sender.all(), 1)
	assert.Equal(t, "first", sender.all()[0].payload)
	assert.Equal(t, 1, obs.outcomes[OutcomeResolved])
	assert.Equal(t, 0, obs.outcomes[OutcomeRejected])
}

func TestDispatchAsynchronousResolve(t *testing.T) {
	sender := &recordingSender{}
	release := make(chan struct{})
	d := New(Handlers{
		FormFields: func(ctx context.Context, resolve func([]protocol.FormFieldsOption), reject Reject) {
			<-release
			resolve(nil)
		},
	}, sender)

	require.NoError(t, d.Dispatch(context.Background(), request(t, protocol.KindFormFields, nil)))
	assert.Empty(t, sender.all(), "dispatch must not wait for the handler")

	close(release)
	d.Wait()
	require.Len(t, sender.all(), 1)
	assert.Equal(t, protocol.KindFormFieldsRes, sender.all()[0].kind)
}

func TestDispatchUnconfiguredIsDropped(t *testing.T) {
	sender := &recordingSender{}
	obs := newCountingObserver()
	called := false
	d := New(Handlers{
		AddMedia: func(ctx context.Context, resolve func(protocol.AddMediaData), reject Reject, extra protocol.AddMediaExtra) {
			called = true
		},
	}, sender, WithObserver(obs))

	require.NoError(t, d.Dispatch(context.Background(), request(t, protocol.KindFormFields, nil)))
	d.Wait()

	assert.Empty(t, sender.all())
	assert.False(t, called)
	assert.Equal(t, 1, obs.outcomes[OutcomeDropped])
}

func TestDispatchUnconfiguredStrict(t *testing.T) {
	sender := &recordingSender{}
	d := New(Handlers{}, sender, WithStrict(true))

	require.NoError(t, d.Dispatch(context.Background(), request(t, protocol.KindTrigger, protocol.TriggerExtra{Type: "Form"})))

	require.Len(t, sender.all(), 1)
	assert.Equal(t, sent{kind: protocol.KindTriggerRej, payload: ReasonUnimplemented}, sender.all()[0])
}

func TestDispatchHandlerPanicIsContained(t *testing.T) {
	sender := &recordingSender{}
	d := New(Handlers{
		FormAction: func(ctx context.Context, resolve func(string), reject Reject) {
			panic("boom")
		},
	}, sender)

	require.NoError(t, d.Dispatch(context.Background(), request(t, protocol.KindFormAction, nil)))
	d.Wait()
	assert.Empty(t, sender.all())
}

func TestDispatchRejectsNonCapability(t *testing.T) {
	d := New(Handlers{}, &recordingSender{})

	err := d.Dispatch(context.Background(), request(t, protocol.KindSave, nil))
	assert.True(t, errors.Is(err, ErrNotCapability))
}

func TestDispatchMalformedExtra(t *testing.T) {
	called := false
	d := New(Handlers{
		Trigger: func(ctx context.Context, resolve func(string), reject Reject, extra protocol.TriggerExtra) {
			called = true
		},
	}, &recordingSender{})

	err := d.Dispatch(context.Background(), protocol.Action{Type: protocol.KindTrigger, Payload: json.RawMessage(`"Button"`)})
	d.Wait()
	assert.ErrorIs(t, err, protocol.ErrMalformed)
	assert.False(t, called)
}

func TestHandlersConfigured(t *testing.T) {
	h := Handlers{
		FormAction: func(context.Context, func(string), Reject) {},
		Trigger:    func(context.Context, func(string), Reject, protocol.TriggerExtra) {},
	}
	assert.Equal(t, []protocol.Kind{protocol.KindFormAction, protocol.KindTrigger}, h.Configured())
	assert.Empty(t, Handlers{}.Configured())
}
