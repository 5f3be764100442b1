package database

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/astracat/catform/config"
	"github.com/astracat/catform/model"
)

// Open returns the process-wide database handle. It is opened once at
// startup and shared by every request.
func Open(cfg config.Config) (db *sql.DB, err error) {
	db, err = sql.Open("sqlite3", cfg.DBUrl)
	if err != nil {
		return
	}

	// WAL keeps readers unblocked while a submission is writing
	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return
	}
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		db.Close()
		return
	}

	// single persistent handle, no pooling
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return
	}

	err = seed(db, cfg)
	if err != nil {
		db.Close()
		return
	}

	return
}

// seed makes sure the demo user exists and, when requested, resets its
// password.
func seed(db *sql.DB, cfg config.Config) error {
	now := time.Now().Unix()
	_, err := db.Exec(`
		INSERT OR IGNORE INTO users (id, email, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		model.DemoUserID,
		"demo@catform.astracat.ru",
		"Demo User",
		now,
		now,
	)
	if err != nil {
		return err
	}

	if cfg.AdminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		_, err = db.Exec(`
			UPDATE users SET password_hash = ?, updated_at = ?
			WHERE id = ?`,
			string(hash),
			now,
			model.DemoUserID,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
