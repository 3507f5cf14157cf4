// Package db opens the relational store used for users, sessions and
// documents
package db

import (
	"bitwise74/cms-api/model"
	"fmt"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func New() (*gorm.DB, error) {
	var dial gorm.Dialector

	switch viper.GetString("db.driver") {
	case "postgres":
		dial = postgres.Open(viper.GetString("db.dsn"))
	default:
		dial = sqlite.Open(viper.GetString("db.dsn"))
	}

	db, err := gorm.Open(dial)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	err = db.AutoMigrate(model.User{}, model.Session{}, model.Document{})
	if err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return db, nil
}
