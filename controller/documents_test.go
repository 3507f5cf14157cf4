package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"bitwise74/cms-api/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(model.User{}, model.Session{}, model.Document{}))

	return db
}

func newTestDocuments(t *testing.T) *Documents {
	t.Helper()
	return NewDocuments(newTestDB(t), nil)
}

func putDoc(t *testing.T, d *Documents, folder, name, value string) {
	t.Helper()

	err := d.Put(context.Background(), PutParams{
		Key:        Key{Model: "pages", Folder: folder, Name: name},
		Value:      json.RawMessage(value),
		ModifiedBy: "admin@example.com",
	})
	require.NoError(t, err)
}

func TestDocumentsPutThenGet(t *testing.T) {
	d := newTestDocuments(t)
	ctx := context.Background()

	putDoc(t, d, "", "home", `{"title":"Home"}`)

	item, err := d.Get(ctx, Key{Model: "pages", Name: "home"})
	require.NoError(t, err)

	var value map[string]any
	require.NoError(t, json.Unmarshal(item.Value, &value))

	assert.Equal(t, "Home", value["title"])
	assert.Equal(t, "pages", value["_model"])
	assert.Equal(t, "home", value["_name"])
	assert.Equal(t, "admin@example.com", item.ModifiedBy)

	first := item.ModifiedAt

	putDoc(t, d, "", "home", `{"title":"Home v2"}`)

	item, err = d.Get(ctx, Key{Model: "pages", Name: "home"})
	require.NoError(t, err)

	require.NoError(t, json.Unmarshal(item.Value, &value))
	assert.Equal(t, "Home v2", value["title"])
	assert.GreaterOrEqual(t, item.ModifiedAt, first)
}

func TestDocumentsNonObjectValueRoundTrips(t *testing.T) {
	d := newTestDocuments(t)

	putDoc(t, d, "", "counter", `42`)

	item, err := d.Get(context.Background(), Key{Model: "pages", Name: "counter"})
	require.NoError(t, err)
	assert.JSONEq(t, `42`, string(item.Value))
}

func TestDocumentsGetMissing(t *testing.T) {
	d := newTestDocuments(t)

	_, err := d.Get(context.Background(), Key{Model: "pages", Name: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentsDeleteThenExists(t *testing.T) {
	d := newTestDocuments(t)
	ctx := context.Background()

	putDoc(t, d, "", "gone", `{}`)

	require.NoError(t, d.Delete(ctx, Key{Model: "pages", Name: "gone"}))

	exists, err := d.Exists(ctx, Key{Model: "pages", Name: "gone"})
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = d.Get(ctx, Key{Model: "pages", Name: "gone"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, d.Delete(ctx, Key{Model: "pages", Name: "gone"}), ErrNotFound)
}

func TestDocumentsPrefixIsPrefixNotSubstring(t *testing.T) {
	d := newTestDocuments(t)

	for _, name := range []string{"abc", "bca", "cab"} {
		putDoc(t, d, "", name, `{}`)
	}

	res, err := d.List(context.Background(), ListParams{Model: "pages", Prefix: "ab", Limit: 20})
	require.NoError(t, err)

	require.Len(t, res.Entries, 1)
	assert.Equal(t, "abc", res.Entries[0].Name)
	assert.Empty(t, res.Last)
}

func TestDocumentsListScopedToModel(t *testing.T) {
	d := newTestDocuments(t)
	ctx := context.Background()

	putDoc(t, d, "", "page-one", `{}`)

	err := d.Put(ctx, PutParams{
		Key:   Key{Model: "posts", Name: "post-one"},
		Value: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	res, err := d.List(ctx, ListParams{Model: "pages", Limit: 20})
	require.NoError(t, err)

	require.Len(t, res.Entries, 1)
	assert.Equal(t, "page-one", res.Entries[0].Name)
}

func TestDocumentsCursorWalkEnumeratesAll(t *testing.T) {
	d := newTestDocuments(t)
	ctx := context.Background()

	const total = 25
	for i := 0; i < total; i++ {
		putDoc(t, d, "", fmt.Sprintf("doc-%02d", i), `{}`)
	}

	seen := map[string]bool{}
	after := ""

	for {
		res, err := d.List(ctx, ListParams{Model: "pages", Prefix: "doc-", Limit: 10, After: after})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(res.Entries), 10)

		for _, e := range res.Entries {
			assert.False(t, seen[e.Name], "duplicate entry %s", e.Name)
			seen[e.Name] = true
		}

		if res.Last == "" {
			break
		}
		after = res.Last
	}

	assert.Len(t, seen, total)
}

func TestDocumentsFolderMove(t *testing.T) {
	d := newTestDocuments(t)
	ctx := context.Background()

	putDoc(t, d, "draft", "home", `{"title":"Home"}`)

	err := d.Put(ctx, PutParams{
		Key:     Key{Model: "pages", Folder: "draft", Name: "home"},
		Move:    "live",
		MoveSet: true,
		Value:   json.RawMessage(`{"title":"Home"}`),
	})
	require.NoError(t, err)

	_, err = d.Get(ctx, Key{Model: "pages", Folder: "draft", Name: "home"})
	assert.ErrorIs(t, err, ErrNotFound)

	item, err := d.Get(ctx, Key{Model: "pages", Folder: "live", Name: "home"})
	require.NoError(t, err)

	var value map[string]any
	require.NoError(t, json.Unmarshal(item.Value, &value))
	assert.Equal(t, "Home", value["title"])
}

func TestDocumentsRenameMissing(t *testing.T) {
	d := newTestDocuments(t)

	err := d.Put(context.Background(), PutParams{
		Key:    Key{Model: "pages", Name: "ghost"},
		Rename: "phantom",
		Value:  json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, ErrRenameMissing)
}

func TestDocumentsRenameConflict(t *testing.T) {
	d := newTestDocuments(t)
	ctx := context.Background()

	putDoc(t, d, "", "a", `{"v":1}`)
	putDoc(t, d, "", "b", `{"v":2}`)

	err := d.Put(ctx, PutParams{
		Key:    Key{Model: "pages", Name: "a"},
		Rename: "b",
		Value:  json.RawMessage(`{"v":1}`),
	})
	assert.ErrorIs(t, err, ErrConflict)

	// Explicit overwrite intent replaces the target
	err = d.Put(ctx, PutParams{
		Key:       Key{Model: "pages", Name: "a"},
		Rename:    "b",
		Overwrite: true,
		Value:     json.RawMessage(`{"v":1}`),
	})
	require.NoError(t, err)

	_, err = d.Get(ctx, Key{Model: "pages", Name: "a"})
	assert.ErrorIs(t, err, ErrNotFound)

	item, err := d.Get(ctx, Key{Model: "pages", Name: "b"})
	require.NoError(t, err)

	var value map[string]any
	require.NoError(t, json.Unmarshal(item.Value, &value))
	assert.EqualValues(t, 1, value["v"])
}

func TestDocumentsPutWithoutValue(t *testing.T) {
	d := newTestDocuments(t)

	err := d.Put(context.Background(), PutParams{
		Key: Key{Model: "pages", Name: "empty"},
	})
	assert.ErrorIs(t, err, ErrMissingValue)
}

func TestDocumentsListFolders(t *testing.T) {
	d := newTestDocuments(t)
	ctx := context.Background()

	putDoc(t, d, "draft", "a", `{}`)
	putDoc(t, d, "live", "b", `{}`)
	putDoc(t, d, "", "c", `{}`)

	folders, err := d.ListFolders(ctx, "pages")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"draft", "live"}, folders)
}
