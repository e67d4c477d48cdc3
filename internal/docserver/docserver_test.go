package docserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "docserver-secret"

func TestDocAPIJS(t *testing.T) {
	c := New(Config{URL: "https://docs.example.com/"})
	assert.Equal(t, "https://docs.example.com/web-apps/apps/api/documents/api.js", c.DocAPIJS())
}

func TestNotConfigured(t *testing.T) {
	c := New(Config{})
	assert.False(t, c.Configured())
	assert.ErrorIs(t, c.Healthcheck(context.Background()), ErrNotConfigured)
	_, err := c.EditorConfig(EditorParams{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.Build(context.Background(), "http://x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestHealthcheck(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/healthcheck", r.URL.Path)
		if healthy {
			io.WriteString(w, "true")
			return
		}
		io.WriteString(w, "false")
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL})
	assert.NoError(t, c.Healthcheck(context.Background()))
	healthy = false
	assert.ErrorIs(t, c.Healthcheck(context.Background()), ErrUnhealthy)

	srv.Close()
	assert.ErrorIs(t, c.Healthcheck(context.Background()), ErrUnhealthy)
}

func TestEditorConfig_ForcesSubmitFormOff(t *testing.T) {
	c := New(Config{URL: "http://docs"})
	raw, err := c.EditorConfig(EditorParams{
		Key:           "abc",
		Title:         "Quotation.docxf",
		URL:           "http://odoo/download",
		CallbackURL:   "http://odoo/callback",
		User:          User{ID: "alice", Name: "alice"},
		Customization: map[string]any{"submitForm": true, "compactHeader": true},
	})
	require.NoError(t, err)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	assert.Equal(t, "word", cfg["documentType"])
	assert.NotContains(t, cfg, "token")

	doc := cfg["document"].(map[string]any)
	assert.Equal(t, "docxf", doc["fileType"])
	assert.Equal(t, "abc", doc["key"])

	ec := cfg["editorConfig"].(map[string]any)
	assert.Equal(t, "edit", ec["mode"])
	assert.Equal(t, "http://odoo/callback", ec["callbackUrl"])
	custom := ec["customization"].(map[string]any)
	assert.Equal(t, false, custom["submitForm"])
	assert.Equal(t, true, custom["compactHeader"])
}

func TestEditorConfig_Signed(t *testing.T) {
	c := New(Config{URL: "http://docs", JWTSecret: secret})
	raw, err := c.EditorConfig(EditorParams{Key: "k", Title: "T.docxf", URL: "http://odoo/dl"})
	require.NoError(t, err)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	token, ok := cfg["token"].(string)
	require.True(t, ok)

	claims, err := c.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "word", claims["documentType"])
	custom := claims["editorConfig"].(map[string]any)["customization"].(map[string]any)
	assert.Equal(t, false, custom["submitForm"])
}

func TestBuild(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/docbuilder", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"key":  "k",
			"end":  true,
			"urls": map[string]string{"Quotation.docx": "http://docs/cache/Quotation.docx"},
		})
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, JWTSecret: secret})
	href, err := c.Build(context.Background(), "http://odoo/script")
	require.NoError(t, err)
	assert.Equal(t, "http://docs/cache/Quotation.docx", href)

	assert.Equal(t, false, gotBody["async"])
	assert.Equal(t, "http://odoo/script", gotBody["url"])
	claims, err := c.Verify(gotBody["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "http://odoo/script", claims["url"])

	require.True(t, strings.HasPrefix(gotAuth, "Bearer "))
	claims, err = c.Verify(strings.TrimPrefix(gotAuth, "Bearer "))
	require.NoError(t, err)
	assert.Equal(t, "http://odoo/script", claims["payload"].(map[string]any)["url"])
}

func TestBuild_ErrorCodes(t *testing.T) {
	code := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": code})
	}))
	defer srv.Close()
	c := New(Config{URL: srv.URL})

	cases := map[int]string{
		-1:  "Unknown error.",
		-2:  "Generation timeout error.",
		-3:  "Document generation error.",
		-4:  "Error while downloading the document file to be generated.",
		-6:  "Error while accessing the document generation result database.",
		-8:  "Invalid token.",
		-99: "Error code not recognized.",
	}
	for c2, msg := range cases {
		code = c2
		_, err := c.Build(context.Background(), "http://odoo/script")
		var be *BuildError
		require.True(t, errors.As(err, &be), "code %d", c2)
		assert.Equal(t, c2, be.Code)
		assert.Equal(t, msg, err.Error())
	}

	code = 0
	_, err := c.Build(context.Background(), "http://odoo/script")
	assert.EqualError(t, err, "Unknown error.")
}

func TestBuild_HTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err := New(Config{URL: srv.URL}).Build(context.Background(), "http://odoo/script")
	assert.ErrorContains(t, err, "request failed")
}

func TestParseCallback(t *testing.T) {
	body := []byte(`{"key":"k","status":2,"url":"http://docs/saved.docx"}`)

	plain := New(Config{URL: "http://docs"})
	cb, err := plain.ParseCallback(body, "")
	require.NoError(t, err)
	assert.True(t, cb.Saves())
	assert.Equal(t, "http://docs/saved.docx", cb.URL)

	signed := New(Config{URL: "http://docs", JWTSecret: secret})
	_, err = signed.ParseCallback(body, "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err := signed.Sign(jwt.MapClaims{"key": "k", "status": 6, "url": "http://docs/forced.docx"})
	require.NoError(t, err)
	withToken, err := json.Marshal(map[string]any{"key": "k", "status": 1, "token": token})
	require.NoError(t, err)
	cb, err = signed.ParseCallback(withToken, "")
	require.NoError(t, err)
	assert.Equal(t, StatusForceSave, cb.Status)
	assert.Equal(t, "http://docs/forced.docx", cb.URL)

	headerToken, err := signed.Sign(jwt.MapClaims{"payload": map[string]any{"key": "k", "status": 4}})
	require.NoError(t, err)
	cb, err = signed.ParseCallback(body, "Bearer "+headerToken)
	require.NoError(t, err)
	assert.Equal(t, StatusClosedNoSave, cb.Status)
	assert.False(t, cb.Saves())

	_, err = plain.ParseCallback([]byte("{"), "")
	assert.Error(t, err)
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "docx-bytes")
	}))
	defer srv.Close()
	c := New(Config{URL: srv.URL})

	data, err := c.Download(context.Background(), srv.URL+"/saved.docx")
	require.NoError(t, err)
	assert.Equal(t, "docx-bytes", string(data))

	_, err = c.Download(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}

func TestDownload_RejectsOversizedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "0123456789")
	}))
	defer srv.Close()

	exact := New(Config{URL: srv.URL, MaxDownload: 10})
	data, err := exact.Download(context.Background(), srv.URL+"/saved.docx")
	require.NoError(t, err)
	assert.Len(t, data, 10)

	small := New(Config{URL: srv.URL, MaxDownload: 9})
	_, err = small.Download(context.Background(), srv.URL+"/saved.docx")
	assert.ErrorIs(t, err, ErrTooLarge)
}
