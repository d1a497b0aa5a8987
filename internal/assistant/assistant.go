// Package assistant is the optional LLM conversation helper. It is a
// stateless request/response text call; any failure degrades to a canned
// apology so chat never breaks on it.
package assistant

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"
)

// Apology is the fallback reply when the service is unavailable or
// unconfigured.
const Apology = "Désolé, je ne peux pas répondre pour le moment. Réessayez plus tard !"

// Client talks to an OpenAI-compatible text endpoint. Configure with
// ASSISTANT_API_URL and ASSISTANT_API_KEY.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Reply returns the assistant's answer for the prompt, or the canned
// apology. It never returns an error; unavailability is graceful by design.
func (c *Client) Reply(prompt string) string {
	answer, err := c.query(prompt)
	if err != nil {
		log.Printf("WARNING: Assistant unavailable: %v", err)
		return Apology
	}
	return answer
}

func (c *Client) query(prompt string) (string, error) {
	if c.BaseURL == "" || c.APIKey == "" {
		return "", errors.New("assistant not configured")
	}

	body, _ := json.Marshal(map[string]interface{}{"prompt": prompt})
	req, err := http.NewRequest(http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", errors.New("assistant request failed: " + string(raw))
	}

	var parsed map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}

	// Providers disagree on the output key; try the usual ones.
	for _, key := range []string{"output", "response", "text"} {
		if out, ok := parsed[key].(string); ok && out != "" {
			return out, nil
		}
	}
	if choices, ok := parsed["choices"].([]interface{}); ok && len(choices) > 0 {
		if first, ok := choices[0].(map[string]interface{}); ok {
			if text, ok := first["text"].(string); ok && text != "" {
				return text, nil
			}
			if msg, ok := first["message"].(map[string]interface{}); ok {
				if content, ok := msg["content"].(string); ok && content != "" {
					return content, nil
				}
			}
		}
	}
	return "", errors.New("assistant response had no text")
}
