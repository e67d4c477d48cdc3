package api

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/auth"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/docserver"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/session"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/template"
)

// EditorLoader gathers what an editor session needs: the template, the field
// tree of its model, a healthy document server and a signed editor config.
type EditorLoader struct {
	Deps
}

// NewEditorLoader creates the session loader over deps.
func NewEditorLoader(deps Deps) *EditorLoader {
	return &EditorLoader{Deps: deps}
}

// Load implements session.Loader.
func (l *EditorLoader) Load(ctx context.Context, templateID, user string) (session.Params, error) {
	tpl, err := l.Templates.Get(ctx, templateID)
	if err != nil {
		return session.Params{}, err
	}
	tree, err := l.tree(tpl.Model)
	if err != nil {
		return session.Params{}, err
	}
	editor, err := l.Editor(ctx, tpl, user)
	if err != nil {
		return session.Params{}, err
	}
	return session.Params{
		TemplateID: tpl.ID,
		Model:      tpl.Model,
		User:       user,
		Tree:       tree,
		Editor:     editor,
	}, nil
}

// Editor checks the document server health and builds the editor config for tpl.
func (l *EditorLoader) Editor(ctx context.Context, tpl template.Template, user string) (session.Editor, error) {
	if err := l.DocServer.Healthcheck(ctx); err != nil {
		return session.Editor{}, err
	}
	download, err := l.tokenURL("/api/templates/"+url.PathEscape(tpl.ID)+"/download", auth.PurposeDownload, tpl.ID, user)
	if err != nil {
		return session.Editor{}, err
	}
	callback, err := l.tokenURL("/api/templates/"+url.PathEscape(tpl.ID)+"/callback", auth.PurposeCallback, tpl.ID, user)
	if err != nil {
		return session.Editor{}, err
	}
	name := user
	if name == "" {
		name = "Anonymous"
	}
	cfg, err := l.DocServer.EditorConfig(docserver.EditorParams{
		Key:         tpl.DocumentKey(),
		Title:       tpl.FileName,
		URL:         download,
		CallbackURL: callback,
		User:        docserver.User{ID: user, Name: name},
		Lang:        l.Lang,
	})
	if err != nil {
		return session.Editor{}, fmt.Errorf("building editor config: %w", err)
	}
	return session.Editor{Config: cfg, DocAPIJS: l.DocServer.DocAPIJS()}, nil
}

// tokenURL returns the public URL of path carrying a token for subject.
func (l *EditorLoader) tokenURL(path, purpose, subject, user string) (string, error) {
	return tokenURL(l.Deps, path, purpose, subject, user, l.editorTTL())
}

func tokenURL(d Deps, path, purpose, subject, user string, ttl time.Duration) (string, error) {
	token, err := d.Tokens.Issue(purpose, subject, user, ttl)
	if err != nil {
		return "", err
	}
	return d.url(path) + "?token=" + url.QueryEscape(token), nil
}
