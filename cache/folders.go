// Package cache keeps the distinct-folder projection for each model in
// redis so listing folders doesn't need a table scan on every request.
// Entries are invalidated whenever a write could change the folder set
// and lazily repopulated on the next read.
package cache

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Safety net for invalidations lost to crashes between the DB write and
// the cache delete
const folderTTL = 24 * time.Hour

type Folders struct {
	rdb *redis.Client
}

// NewFolders returns a nil cache when no address is configured. All
// methods are nil-safe and degrade to cache misses.
func NewFolders(addr string) *Folders {
	if addr == "" {
		return nil
	}

	return &Folders{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func folderKey(model string) string {
	return "folders:" + model
}

func (f *Folders) Get(ctx context.Context, model string) ([]string, bool) {
	if f == nil {
		return nil, false
	}

	raw, err := f.rdb.Get(ctx, folderKey(model)).Bytes()
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("Folder cache read failed", zap.String("model", model), zap.Error(err))
		}
		return nil, false
	}

	var folders []string
	if err := json.Unmarshal(raw, &folders); err != nil {
		zap.L().Warn("Folder cache entry corrupt", zap.String("model", model), zap.Error(err))
		return nil, false
	}

	return folders, true
}

func (f *Folders) Put(ctx context.Context, model string, folders []string) {
	if f == nil {
		return
	}

	raw, _ := json.Marshal(folders)

	if err := f.rdb.Set(ctx, folderKey(model), raw, folderTTL).Err(); err != nil {
		zap.L().Warn("Folder cache write failed", zap.String("model", model), zap.Error(err))
	}
}

// Add inserts a single folder into an existing entry, used when a file
// move introduces a folder without going through the relational store
func (f *Folders) Add(ctx context.Context, model, folder string) {
	if f == nil || folder == "" {
		return
	}

	folders, ok := f.Get(ctx, model)
	if !ok {
		return
	}

	if slices.Contains(folders, folder) {
		return
	}

	f.Put(ctx, model, append(folders, folder))
}

func (f *Folders) Invalidate(ctx context.Context, model string) {
	if f == nil {
		return
	}

	if err := f.rdb.Del(ctx, folderKey(model)).Err(); err != nil {
		zap.L().Warn("Folder cache invalidation failed", zap.String("model", model), zap.Error(err))
	}
}
