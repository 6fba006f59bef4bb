package heater

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWebhookNotifier_Announce_PostsJSONEnvelope(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, nil)
	err := n.Announce(context.Background(), Event{AccountName: "acme", ReleasesMined: 3, PRsMined: 42})
	require.NoError(t, err)
	require.Equal(t, "acme", received["account"])
	require.Equal(t, float64(3), received["releases"])
	require.Equal(t, float64(42), received["prs"])
}

func TestWebhookNotifier_Announce_EmptyURLIsNoop(t *testing.T) {
	n := NewWebhookNotifier("", nil)
	require.NoError(t, n.Announce(context.Background(), Event{}))
}

func TestWebhookNotifier_Announce_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, nil)
	err := n.Announce(context.Background(), Event{AccountName: "acme"})
	require.Error(t, err)
}

type fakeNotifier struct {
	called bool
	err    error
}

func (f *fakeNotifier) Announce(ctx context.Context, event Event) error {
	f.called = true
	return f.err
}

func TestMultiNotifier_Announce_CallsEveryChannel(t *testing.T) {
	a, b := &fakeNotifier{}, &fakeNotifier{}
	m := MultiNotifier{Notifiers: []Notifier{a, b}}
	require.NoError(t, m.Announce(context.Background(), Event{AccountName: "acme"}))
	require.True(t, a.called)
	require.True(t, b.called)
}

func TestMultiNotifier_Announce_OneChannelFailingDoesNotSuppressOthers(t *testing.T) {
	failing := &fakeNotifier{err: fmt.Errorf("smtp down")}
	working := &fakeNotifier{}
	m := MultiNotifier{Notifiers: []Notifier{failing, working}}

	err := m.Announce(context.Background(), Event{AccountName: "acme"})
	require.Error(t, err)
	require.True(t, working.called, "a failing channel must not stop others from being tried")
}

func TestMultiNotifier_Announce_NilChannelsAreSkipped(t *testing.T) {
	m := MultiNotifier{Notifiers: []Notifier{nil, &fakeNotifier{}}}
	require.NoError(t, m.Announce(context.Background(), Event{}))
}
