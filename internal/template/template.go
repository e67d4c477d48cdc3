// Package template stores document templates: the form document plus the
// data model its merge fields come from.
package template

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MimeType is the content type templates are stored and served with.
const MimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Extension is appended to the template name to form its file name.
const Extension = ".docxf"

var (
	ErrNotFound = errors.New("template not found")
	ErrInvalid  = errors.New("invalid template")
)

//go:embed blank.docxf
var blank []byte

// Blank returns a copy of the empty form document new templates start from.
func Blank() []byte {
	return append([]byte(nil), blank...)
}

// Template is a stored form document.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	FileName  string    `json:"file_name"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Data      []byte    `json:"-"`
}

// DocumentKey identifies this revision of the document to the document
// server. It changes whenever the content changes.
func (t Template) DocumentKey() string {
	if len(t.Checksum) > 20 {
		return t.Checksum[:20]
	}
	return t.Checksum
}

// Store is the interface for reading and writing templates.
type Store interface {
	// Create stores a new template. Empty Data is replaced by the blank
	// document; ID, FileName, MimeType, Checksum and timestamps are set.
	Create(ctx context.Context, t Template) (Template, error)
	Get(ctx context.Context, id string) (Template, error)
	// List returns templates without Data, most recently updated first. An
	// empty model lists all.
	List(ctx context.Context, model string) ([]Template, error)
	UpdateData(ctx context.Context, id string, data []byte) (Template, error)
	// Rename changes the name and with it the file name.
	Rename(ctx context.Context, id, name string) (Template, error)
	Delete(ctx context.Context, id string) error
}

// Checksum returns the hex sha256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FileName returns the stored file name for a template name.
func FileName(name string) string {
	return name + Extension
}

// prepare validates t and fills the derived fields for Create.
func prepare(t Template, now time.Time) (Template, error) {
	t.Name = strings.TrimSpace(t.Name)
	t.Model = strings.TrimSpace(t.Model)
	if t.Name == "" {
		return t, errors.Join(ErrInvalid, errors.New("name is required"))
	}
	if t.Model == "" {
		return t, errors.Join(ErrInvalid, errors.New("model is required"))
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if len(t.Data) == 0 {
		t.Data = Blank()
	}
	t.FileName = FileName(t.Name)
	t.MimeType = MimeType
	t.Size = int64(len(t.Data))
	t.Checksum = Checksum(t.Data)
	t.CreatedAt = now
	t.UpdatedAt = now
	return t, nil
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.Join(ErrInvalid, errors.New("name is required"))
	}
	return name, nil
}
