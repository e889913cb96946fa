package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botsentinel/botsentinel/internal/notify"
)

func TestTwilioWhatsApp_Notify(t *testing.T) {
	var captured *http.Request
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"From": r.PostFormValue("From"),
			"To":   r.PostFormValue("To"),
			"Body": r.PostFormValue("Body"),
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	n := notify.NewTwilioWhatsApp(notify.TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+15550001111",
		To:         "+15550002222",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Logger:     zerolog.Nop(),
	})

	sent := n.Notify(context.Background(), "bot primary is down")
	require.True(t, sent)

	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", captured.URL.Path)
	user, pass, ok := captured.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "AC123", user)
	assert.Equal(t, "secret", pass)

	assert.Equal(t, "whatsapp:+15550001111", form["From"])
	assert.Equal(t, "whatsapp:+15550002222", form["To"])
	assert.Equal(t, "bot primary is down", form["Body"])
}

func TestTwilioWhatsApp_Rejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := notify.NewTwilioWhatsApp(notify.TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "wrong",
		From:       "+15550001111",
		To:         "+15550002222",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Logger:     zerolog.Nop(),
	})

	assert.False(t, n.Notify(context.Background(), "down"))
}

func TestMulti(t *testing.T) {
	m := notify.Multi{notify.Nop{}, notify.LogNotifier{Logger: zerolog.Nop()}}
	assert.True(t, m.Notify(context.Background(), "hello"), "one success is enough")

	empty := notify.Multi{notify.Nop{}}
	assert.False(t, empty.Notify(context.Background(), "hello"))
}
