package assistant_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"spotmatch/app/internal/assistant"
)

// TestReply_Unconfigured degrades to the canned apology.
func TestReply_Unconfigured(t *testing.T) {
	client := assistant.NewClient("", "")

	assert.Equal(t, assistant.Apology, client.Reply("hello"))
}

// TestReply_ProviderShapes verifies the usual response keys all decode.
func TestReply_ProviderShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"output key", `{"output":"bonjour"}`},
		{"response key", `{"response":"bonjour"}`},
		{"chat choices", `{"choices":[{"message":{"content":"bonjour"}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := assistant.NewClient(server.URL, "key")
			assert.Equal(t, "bonjour", client.Reply("salut"))
		})
	}
}

// TestReply_ServerErrorDegrades verifies a failing provider still yields the
// apology, never an error to the chat view.
func TestReply_ServerErrorDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := assistant.NewClient(server.URL, "key")
	assert.Equal(t, assistant.Apology, client.Reply("salut"))
}
