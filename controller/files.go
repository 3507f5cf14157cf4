package controller

import (
	"context"
	"errors"
	"strings"

	"bitwise74/cms-api/cache"
)

// Files stores entries as raw objects under slash-delimited keys. The
// folder is the first path segment when present.
type Files struct {
	store   ObjectStore
	folders *cache.Folders
}

func NewFiles(store ObjectStore, folders *cache.Folders) *Files {
	return &Files{store: store, folders: folders}
}

func objectKey(folder, name string) string {
	if folder != "" {
		return folder + "/" + name
	}
	return name
}

// List uses the store's native prefix listing and opaque cursor
func (f *Files) List(ctx context.Context, p ListParams) (*ListResult, error) {
	prefix := p.Prefix
	if p.Folder != "" {
		prefix = p.Folder + "/" + p.Prefix
	}

	page, err := f.store.List(ctx, prefix, p.After, p.Limit)
	if err != nil {
		return nil, err
	}

	res := &ListResult{
		Entries: make([]Entry, 0, len(page.Objects)),
		Last:    page.Cursor,
	}

	for _, obj := range page.Objects {
		entry := Entry{
			Name:       obj.Key,
			ModifiedAt: obj.Uploaded,
			ModifiedBy: obj.UploadedBy,
		}

		if folder, name, ok := strings.Cut(obj.Key, "/"); ok && !strings.Contains(name, "/") {
			entry.Folder = folder
			entry.Name = name
		}

		res.Entries = append(res.Entries, entry)
	}

	return res, nil
}

// ListFolders only knows folders already observed by the cache; there
// is no cheap distinct-prefix query against the object store
func (f *Files) ListFolders(ctx context.Context, m string) ([]string, error) {
	if cached, ok := f.folders.Get(ctx, m); ok {
		return cached, nil
	}
	return []string{}, nil
}

func (f *Files) Exists(ctx context.Context, k Key) (bool, error) {
	_, err := f.store.Head(ctx, objectKey(k.Folder, k.Name))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (f *Files) Get(ctx context.Context, k Key) (*Item, error) {
	obj, err := f.store.Get(ctx, objectKey(k.Folder, k.Name))
	if err != nil {
		return nil, err
	}

	return &Item{
		Body:        obj.Body,
		ContentType: obj.ContentType,
		ModifiedAt:  obj.Uploaded,
		ModifiedBy:  obj.UploadedBy,
	}, nil
}

// Put streams the request body straight into the store. Rename/move is
// delete-old-key then write-new-key; object stores have no in-place
// rename.
func (f *Files) Put(ctx context.Context, p PutParams) error {
	if p.Body == nil {
		return ErrMissingValue
	}

	targetFolder := p.Folder
	if p.MoveSet {
		targetFolder = p.Move
	}
	targetName := p.Name
	if p.Rename != "" {
		targetName = p.Rename
	}

	if p.Rename != "" || p.MoveSet {
		if _, err := f.store.Head(ctx, objectKey(p.Folder, p.Name)); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrRenameMissing
			}
			return err
		}

		if !p.Overwrite {
			_, err := f.store.Head(ctx, objectKey(targetFolder, targetName))
			if err == nil {
				return ErrConflict
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
		}

		if err := f.store.Delete(ctx, objectKey(p.Folder, p.Name)); err != nil {
			return err
		}
	}

	if p.MoveSet {
		f.folders.Add(ctx, p.Model, p.Move)
	}

	return f.store.Put(ctx, objectKey(targetFolder, targetName), p.Body, p.ContentType, p.ModifiedBy)
}

// Delete is unconditional, matching the store's idempotent delete
func (f *Files) Delete(ctx context.Context, k Key) error {
	return f.store.Delete(ctx, objectKey(k.Folder, k.Name))
}
