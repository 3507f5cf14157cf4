package controller

import (
	"context"
	"encoding/json"
	"errors"

	"bitwise74/cms-api/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Users guards the user table behind the controller interface so the
// generic model routes can't treat accounts as ordinary documents:
// no folders, no rename or move, create-only put.
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// List orders by email and uses the last returned email as the cursor,
// since the user table has no exposed row id
func (u *Users) List(ctx context.Context, p ListParams) (*ListResult, error) {
	q := u.db.WithContext(ctx).
		Model(&model.User{}).
		Where("email > ?", p.After).
		Order("email")

	if p.Prefix != "" {
		q = q.Where("email >= ? AND email < ?", p.Prefix, p.Prefix+"\xff")
	}

	var emails []string

	err := q.Limit(p.Limit).Pluck("email", &emails).Error
	if err != nil {
		return nil, err
	}

	res := &ListResult{Entries: make([]Entry, 0, len(emails))}

	for _, email := range emails {
		res.Entries = append(res.Entries, Entry{Name: email})
	}

	if len(emails) == p.Limit && p.Limit > 0 {
		res.Last = emails[len(emails)-1]
	}

	return res, nil
}

func (u *Users) Exists(ctx context.Context, k Key) (bool, error) {
	var count int64

	err := u.db.WithContext(ctx).
		Model(&model.User{}).
		Where("email = ?", k.Name).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (u *Users) Get(ctx context.Context, k Key) (*Item, error) {
	var user model.User

	err := u.db.WithContext(ctx).Where("email = ?", k.Name).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	value, err := json.Marshal(map[string]string{"email": user.Email})
	if err != nil {
		return nil, err
	}

	return &Item{Value: value}, nil
}

// Put creates an account with a fresh permanent access key. Existing
// accounts are a conflict, not an update.
func (u *Users) Put(ctx context.Context, p PutParams) error {
	if p.Folder != "" || p.Rename != "" || p.MoveSet {
		return ErrUnsupported
	}

	exists, err := u.Exists(ctx, p.Key)
	if err != nil {
		return err
	}
	if exists {
		return ErrConflict
	}

	return u.db.WithContext(ctx).Create(&model.User{
		Email: p.Name,
		Key:   uuid.NewString(),
	}).Error
}

// Delete removes the account and every session it holds
func (u *Users) Delete(ctx context.Context, k Key) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("email = ?", k.Name).Delete(&model.User{})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		return tx.Where("email = ?", k.Name).Delete(&model.Session{}).Error
	})
}
