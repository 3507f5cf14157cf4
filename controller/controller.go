// Package controller holds the per-model storage strategies. The router
// resolves a controller for each addressed model and never touches
// storage itself, so a model's persistence can be swapped (local
// documents, object store, external commerce API) without touching
// routing or authentication.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

var (
	ErrNotFound      = errors.New("entry not found")
	ErrConflict      = errors.New("entry already exists")
	ErrRenameMissing = errors.New("cannot rename or move a missing entry")
	ErrMissingValue  = errors.New("no value provided")
	ErrUnsupported   = errors.New("operation not supported for this model")
)

// Key addresses a single entry
type Key struct {
	Model  string
	Folder string
	Name   string
}

type ListParams struct {
	Model  string
	Folder string
	Prefix string
	Limit  int
	// Opaque resume cursor from a previous page's Last
	After string
}

type Entry struct {
	ID         uint   `json:"id,omitempty"`
	Folder     string `json:"folder,omitempty"`
	Name       string `json:"name"`
	ModifiedAt int64  `json:"modified_at,omitempty"`
	ModifiedBy string `json:"modified_by,omitempty"`
}

type ListResult struct {
	Entries []Entry
	// Set only when the page was full, meaning more entries may exist
	Last string
}

type PutParams struct {
	Key
	// New name within the same folder
	Rename string
	// Target folder. MoveSet distinguishes "move to root" from "no move"
	Move    string
	MoveSet bool
	// Allow rename/move to replace an existing entry
	Overwrite bool

	// Exactly one of Value (JSON document) or Body (raw stream) is set,
	// depending on the request content type
	Value       json.RawMessage
	Body        io.Reader
	ContentType string

	ModifiedBy string
}

// Item is a fetched entry. JSON-backed controllers set Value, stream
// backed controllers set Body and ContentType.
type Item struct {
	Value       json.RawMessage
	Body        io.ReadCloser
	ContentType string

	CreatedAt  int64
	ModifiedAt int64
	ModifiedBy string
}

type Controller interface {
	List(ctx context.Context, p ListParams) (*ListResult, error)
	Exists(ctx context.Context, k Key) (bool, error)
	Get(ctx context.Context, k Key) (*Item, error)
	Put(ctx context.Context, p PutParams) error
	Delete(ctx context.Context, k Key) error
}

// FolderLister is implemented by controllers that can enumerate the
// distinct folders of a model
type FolderLister interface {
	ListFolders(ctx context.Context, model string) ([]string, error)
}

// Registry maps model names to controllers. Built once at startup and
// passed into the router, never mutated afterwards.
type Registry struct {
	controllers map[string]Controller
	fallback    Controller
}

func NewRegistry(fallback Controller) *Registry {
	return &Registry{
		controllers: make(map[string]Controller),
		fallback:    fallback,
	}
}

func (r *Registry) Register(model string, c Controller) {
	r.controllers[model] = c
}

// Resolve returns the controller bound to a model, or the default
// document controller for unregistered models
func (r *Registry) Resolve(model string) Controller {
	if c, ok := r.controllers[model]; ok {
		return c
	}
	return r.fallback
}
