package docserver

import (
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// User identifies the editing user to the editor.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EditorParams describes the document an editor opens.
type EditorParams struct {
	Key         string // document key; must change whenever content changes
	Title       string
	FileType    string // defaults to "docxf"
	URL         string // where the document server downloads the file
	CallbackURL string
	User        User
	Lang        string
	Mode        string // "edit" (default) or "view"
	// Customization is merged into editorConfig.customization.
	Customization map[string]any
}

// EditorConfig renders the JSON config for DocsAPI.DocEditor. Form
// submission is always disabled; the template is saved through the
// callback instead. With a secret configured the config carries its own
// token.
func (c *Client) EditorConfig(p EditorParams) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if p.FileType == "" {
		p.FileType = "docxf"
	}
	if p.Mode == "" {
		p.Mode = "edit"
	}

	customization := map[string]any{}
	for k, v := range p.Customization {
		customization[k] = v
	}
	customization["submitForm"] = false

	cfg := jwt.MapClaims{
		"documentType": "word",
		"document": map[string]any{
			"title":    p.Title,
			"url":      p.URL,
			"fileType": p.FileType,
			"key":      p.Key,
			"permissions": map[string]any{
				"edit":      p.Mode == "edit",
				"fillForms": true,
			},
		},
		"editorConfig": map[string]any{
			"mode":          p.Mode,
			"lang":          p.Lang,
			"callbackUrl":   p.CallbackURL,
			"user":          p.User,
			"customization": customization,
		},
	}

	token, err := c.Sign(cfg)
	if err != nil {
		return "", err
	}
	if token != "" {
		cfg["token"] = token
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding editor config: %w", err)
	}
	return string(raw), nil
}
