package docserver

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Callback statuses sent by the document server.
const (
	StatusEditing       = 1
	StatusMustSave      = 2
	StatusSaveError     = 3
	StatusClosedNoSave  = 4
	StatusForceSave     = 6
	StatusForceSaveFail = 7
)

// Callback is the body the document server posts to the callback URL.
type Callback struct {
	Key    string   `json:"key"`
	Status int      `json:"status"`
	URL    string   `json:"url,omitempty"`
	Users  []string `json:"users,omitempty"`
	Token  string   `json:"token,omitempty"`
}

// Saves reports whether the callback carries a document to store.
func (cb Callback) Saves() bool {
	return (cb.Status == StatusMustSave || cb.Status == StatusForceSave) && cb.URL != ""
}

// ParseCallback decodes a callback body. With a secret configured the
// payload is taken from the signed token in the body, or else from the
// Bearer token in the configured header, and the unsigned body is ignored.
func (c *Client) ParseCallback(body []byte, header string) (Callback, error) {
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return cb, fmt.Errorf("decoding callback: %w", err)
	}
	if !c.SecretSet() {
		return cb, nil
	}

	token := cb.Token
	fromHeader := false
	if token == "" {
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		fromHeader = true
	}
	if token == "" {
		return Callback{}, ErrInvalidToken
	}
	claims, err := c.Verify(token)
	if err != nil {
		return Callback{}, err
	}

	var payload any = map[string]any(claims)
	if fromHeader {
		if p, ok := claims["payload"]; ok {
			payload = p
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Callback{}, err
	}
	var signed Callback
	if err := json.Unmarshal(raw, &signed); err != nil {
		return Callback{}, fmt.Errorf("decoding signed callback: %w", err)
	}
	return signed, nil
}

// Header returns the header name tokens travel in.
func (c *Client) Header() string { return c.header }
