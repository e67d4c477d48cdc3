package docserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/golang-jwt/jwt/v5"
)

var buildErrors = map[int]string{
	-1: "Unknown error.",
	-2: "Generation timeout error.",
	-3: "Document generation error.",
	-4: "Error while downloading the document file to be generated.",
	-6: "Error while accessing the document generation result database.",
	-8: "Invalid token.",
}

// BuildError is a document builder failure reported by error code.
type BuildError struct {
	Code int
}

func (e *BuildError) Error() string {
	if msg, ok := buildErrors[e.Code]; ok {
		return msg
	}
	return "Error code not recognized."
}

type buildResponse struct {
	Key   string            `json:"key"`
	End   bool              `json:"end"`
	URLs  map[string]string `json:"urls"`
	Error int               `json:"error"`
}

// Build asks the document builder to run the script at scriptURL
// synchronously and returns the URL of the first generated file.
func (c *Client) Build(ctx context.Context, scriptURL string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	body := jwt.MapClaims{"async": false, "url": scriptURL}
	var bearer string
	if c.SecretSet() {
		token, err := c.Sign(jwt.MapClaims{"async": false, "url": scriptURL})
		if err != nil {
			return "", err
		}
		body["token"] = token
		bearer, err = c.Sign(jwt.MapClaims{"payload": map[string]any{"async": false, "url": scriptURL}})
		if err != nil {
			return "", err
		}
	}

	resp, err := c.postJSON(ctx, "/docbuilder", body, bearer)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request failed: status %d", resp.StatusCode)
	}

	var out buildResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	if len(out.URLs) > 0 {
		names := make([]string, 0, len(out.URLs))
		for name := range out.URLs {
			names = append(names, name)
		}
		sort.Strings(names)
		if u := out.URLs[names[0]]; u != "" {
			return u, nil
		}
	}
	if out.Error != 0 {
		return "", &BuildError{Code: out.Error}
	}
	return "", &BuildError{Code: -1}
}
