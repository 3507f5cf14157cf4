package controller

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"bitwise74/cms-api/cache"
	"bitwise74/cms-api/model"

	"gorm.io/gorm"
)

// Documents is the default controller: JSON documents in the relational
// store, addressed by (model, folder, name)
type Documents struct {
	db      *gorm.DB
	folders *cache.Folders
}

func NewDocuments(db *gorm.DB, folders *cache.Folders) *Documents {
	return &Documents{db: db, folders: folders}
}

// List pages by the internal row id as a strict lower bound. Prefix
// matching uses a B-tree range scan instead of pattern matching, which
// gives true prefix semantics ("ab" matches "abc" but not "xaby").
func (d *Documents) List(ctx context.Context, p ListParams) (*ListResult, error) {
	after, _ := strconv.ParseUint(p.After, 10, 64)

	q := d.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("model = ?", p.Model).
		Where("id > ?", after)

	if p.Folder != "" {
		q = q.Where("folder = ?", p.Folder)
	}

	// Prefix-filtered lists order by name for alphabetic incremental
	// scanning, unfiltered ones surface activity order
	if p.Prefix != "" {
		q = q.Where("name >= ? AND name < ?", p.Prefix, p.Prefix+"\xff").
			Order("name, id")
	} else {
		q = q.Order("modified_at, id")
	}

	var rows []model.Document

	err := q.Limit(p.Limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}

	res := &ListResult{Entries: make([]Entry, 0, len(rows))}

	for _, r := range rows {
		res.Entries = append(res.Entries, Entry{
			ID:         r.ID,
			Folder:     r.Folder,
			Name:       r.Name,
			ModifiedAt: r.ModifiedAt,
			ModifiedBy: r.ModifiedBy,
		})
	}

	if len(rows) == p.Limit {
		res.Last = strconv.FormatUint(uint64(rows[len(rows)-1].ID), 10)
	}

	return res, nil
}

func (d *Documents) ListFolders(ctx context.Context, m string) ([]string, error) {
	if cached, ok := d.folders.Get(ctx, m); ok {
		return cached, nil
	}

	var folders []string

	err := d.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("model = ? AND folder <> ''", m).
		Distinct().
		Order("folder").
		Pluck("folder", &folders).
		Error
	if err != nil {
		return nil, err
	}

	d.folders.Put(ctx, m, folders)

	return folders, nil
}

func (d *Documents) Exists(ctx context.Context, k Key) (bool, error) {
	var count int64

	err := d.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("model = ? AND folder = ? AND name = ?", k.Model, k.Folder, k.Name).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// Get returns the stored value. Object values are annotated with their
// address and modification time so editors can display them without a
// second request.
func (d *Documents) Get(ctx context.Context, k Key) (*Item, error) {
	var row model.Document

	err := d.db.WithContext(ctx).
		Where("model = ? AND folder = ? AND name = ?", k.Model, k.Folder, k.Name).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	value := json.RawMessage(row.Value)

	var object map[string]any
	if json.Unmarshal(value, &object) == nil && object != nil {
		object["_model"] = k.Model
		object["_folder"] = k.Folder
		object["_name"] = row.Name
		object["_modified_at"] = row.ModifiedAt

		if annotated, err := json.Marshal(object); err == nil {
			value = annotated
		}
	}

	return &Item{
		Value:      value,
		CreatedAt:  row.CreatedAt,
		ModifiedAt: row.ModifiedAt,
		ModifiedBy: row.ModifiedBy,
	}, nil
}

// Put is upsert-or-rename-or-move as one logical operation. A folder
// change is delete-old+insert-new inside one transaction, keeping the
// row id fresh for cursor ordering while never leaving the document
// transiently missing.
func (d *Documents) Put(ctx context.Context, p PutParams) error {
	if p.Value == nil {
		return ErrMissingValue
	}

	var existing model.Document

	err := d.db.WithContext(ctx).
		Where("model = ? AND folder = ? AND name = ?", p.Model, p.Folder, p.Name).
		First(&existing).
		Error
	exists := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if (p.Rename != "" || p.MoveSet) && !exists {
		return ErrRenameMissing
	}

	targetFolder := p.Folder
	if p.MoveSet {
		targetFolder = p.Move
	}
	targetName := p.Name
	if p.Rename != "" {
		targetName = p.Rename
	}

	now := time.Now().Unix()

	// Inserts and moves can change the model's folder set
	if p.MoveSet || (!exists && p.Folder != "") {
		d.folders.Invalidate(ctx, p.Model)
	}

	if !exists {
		return d.db.WithContext(ctx).Create(&model.Document{
			Model:      p.Model,
			Folder:     p.Folder,
			Name:       p.Name,
			Value:      []byte(p.Value),
			CreatedAt:  now,
			ModifiedAt: now,
			ModifiedBy: p.ModifiedBy,
		}).Error
	}

	keyChanged := targetFolder != p.Folder || targetName != p.Name

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if keyChanged {
			var clash model.Document

			err := tx.Where("model = ? AND folder = ? AND name = ?", p.Model, targetFolder, targetName).
				First(&clash).
				Error
			if err == nil {
				if !p.Overwrite {
					return ErrConflict
				}
				if err := tx.Delete(&clash).Error; err != nil {
					return err
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if targetFolder != p.Folder {
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}

			return tx.Create(&model.Document{
				Model:      p.Model,
				Folder:     targetFolder,
				Name:       targetName,
				Value:      []byte(p.Value),
				CreatedAt:  existing.CreatedAt,
				ModifiedAt: now,
				ModifiedBy: p.ModifiedBy,
			}).Error
		}

		return tx.Model(&existing).Updates(map[string]any{
			"name":        targetName,
			"value":       []byte(p.Value),
			"modified_at": now,
			"modified_by": p.ModifiedBy,
		}).Error
	})
}

func (d *Documents) Delete(ctx context.Context, k Key) error {
	res := d.db.WithContext(ctx).
		Where("model = ? AND folder = ? AND name = ?", k.Model, k.Folder, k.Name).
		Delete(&model.Document{})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
