package template

import (
	"archive/zip"
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlStore, err := OpenSQLite(context.Background(), "file:"+filepath.Join(t.TempDir(), "templates.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() })

	// Step the clocks so updates sort deterministically.
	tick := func() func() time.Time {
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		return func() time.Time {
			now = now.Add(time.Second)
			return now
		}
	}
	sqlStore.now = tick()
	mem := NewMemoryStore()
	mem.now = tick()

	return map[string]Store{"memory": mem, "sqlite": sqlStore}
}

func TestStore_CreateAndGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := s.Create(ctx, Template{Name: " Quotation ", Model: "sale.order"})
			require.NoError(t, err)

			assert.NotEmpty(t, created.ID)
			assert.Equal(t, "Quotation", created.Name)
			assert.Equal(t, "Quotation.docxf", created.FileName)
			assert.Equal(t, MimeType, created.MimeType)
			assert.Equal(t, Blank(), created.Data)
			assert.Equal(t, int64(len(Blank())), created.Size)
			assert.Equal(t, Checksum(Blank()), created.Checksum)
			assert.Len(t, created.DocumentKey(), 20)

			got, err := s.Get(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, created, got)

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_CreateValidates(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Create(ctx, Template{Model: "sale.order"})
			assert.ErrorIs(t, err, ErrInvalid)
			_, err = s.Create(ctx, Template{Name: "x"})
			assert.ErrorIs(t, err, ErrInvalid)

			_, err = s.Create(ctx, Template{ID: "fixed", Name: "a", Model: "m"})
			require.NoError(t, err)
			_, err = s.Create(ctx, Template{ID: "fixed", Name: "b", Model: "m"})
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestStore_ListUpdateRenameDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, err := s.Create(ctx, Template{Name: "A", Model: "sale.order", Data: []byte("first")})
			require.NoError(t, err)
			b, err := s.Create(ctx, Template{Name: "B", Model: "res.partner"})
			require.NoError(t, err)

			list, err := s.List(ctx, "")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, b.ID, list[0].ID)
			assert.Nil(t, list[0].Data)

			updated, err := s.UpdateData(ctx, a.ID, []byte("second"))
			require.NoError(t, err)
			assert.Equal(t, []byte("second"), updated.Data)
			assert.Equal(t, Checksum([]byte("second")), updated.Checksum)
			assert.NotEqual(t, a.DocumentKey(), updated.DocumentKey())
			assert.True(t, updated.UpdatedAt.After(a.UpdatedAt))

			list, err = s.List(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, a.ID, list[0].ID)

			list, err = s.List(ctx, "res.partner")
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, b.ID, list[0].ID)

			renamed, err := s.Rename(ctx, b.ID, "Partner Card")
			require.NoError(t, err)
			assert.Equal(t, "Partner Card", renamed.Name)
			assert.Equal(t, "Partner Card.docxf", renamed.FileName)

			_, err = s.Rename(ctx, b.ID, "  ")
			assert.ErrorIs(t, err, ErrInvalid)
			_, err = s.Rename(ctx, "missing", "x")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.UpdateData(ctx, "missing", []byte("x"))
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.UpdateData(ctx, a.ID, nil)
			assert.ErrorIs(t, err, ErrInvalid)

			require.NoError(t, s.Delete(ctx, a.ID))
			assert.ErrorIs(t, s.Delete(ctx, a.ID), ErrNotFound)
			_, err = s.Get(ctx, a.ID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	data := []byte("payload")
	created, err := s.Create(ctx, Template{Name: "A", Model: "m", Data: data})
	require.NoError(t, err)

	data[0] = 'X'
	created.Data[1] = 'Y'
	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got.Data)
}

func TestBlankIsADocument(t *testing.T) {
	b := Blank()
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "word/document.xml")
	assert.Contains(t, names, "[Content_Types].xml")
}

func TestOpenSQLite_ReopensExistingDatabase(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "reopen.db")

	first, err := OpenSQLite(ctx, dsn)
	require.NoError(t, err)
	created, err := first.Create(ctx, Template{Name: "Invoice", Model: "account.move"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := OpenSQLite(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })
	require.NoError(t, second.CreateTable(ctx))

	got, err := second.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Invoice.docxf", got.FileName)
	assert.Equal(t, Blank(), got.Data)
}
