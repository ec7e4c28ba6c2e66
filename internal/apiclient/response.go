package apiclient

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/yndnr/unitrack-go/internal/core/domain"
)

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
	// Retried is true when the response came from the replay after a refresh.
	Retried bool
}

func (r *Response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Envelope is the standard response wrapper of the UniTrack backend.
type Envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    *bool           `json:"success"`
}

// Envelope parses the body as an Envelope. ok is false when the body is
// not enveloped.
func (r *Response) Envelope() (Envelope, bool) {
	return parseEnvelope(r.Body)
}

// Decode unmarshals the payload into v. Enveloped bodies are unwrapped to
// their data field; anything else is decoded as-is. An empty body leaves v
// untouched.
func (r *Response) Decode(v any) error {
	return decodePayload(r.Body, v)
}

func parseEnvelope(body []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, false
	}
	if env.Success == nil || len(env.Data) == 0 {
		return Envelope{}, false
	}
	return env, true
}

func decodePayload(body []byte, v any) error {
	if v == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	payload := body
	if env, ok := parseEnvelope(body); ok {
		payload = env.Data
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return domain.ErrDecode.WithCause(err)
	}
	return nil
}
