package profile

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the profile database at dsn and runs
// migrations. Use ":memory:" for tests.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("profile: open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection so the schema survives across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("profile: enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("profile: migrate: %w", err)
	}
	return store, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			token TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			age INTEGER,
			gender TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			style_preferences TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS brand_preferences (
			customer_id INTEGER NOT NULL,
			brand_name TEXT NOT NULL,
			preference TEXT NOT NULL CHECK (preference IN ('like', 'dislike')),
			PRIMARY KEY (customer_id, brand_name),
			FOREIGN KEY (customer_id) REFERENCES customers(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_brand_prefs_customer ON brand_preferences(customer_id)`,
	}
	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}

// Lookup implements Store.
func (s *SQLiteStore) Lookup(ctx context.Context, token string) (*Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, token, name, COALESCE(age, 0), gender, description, style_preferences
		FROM customers WHERE token = ?`, token)

	var c Customer
	if err := row.Scan(&c.ID, &c.Token, &c.Name, &c.Age, &c.Gender, &c.Description, &c.StylePreferences); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("profile: lookup: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT brand_name, preference FROM brand_preferences WHERE customer_id = ?`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("profile: load brand preferences: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var brand, pref string
		if err := rows.Scan(&brand, &pref); err != nil {
			return nil, fmt.Errorf("profile: scan brand preference: %w", err)
		}
		if pref == "like" {
			c.LikedBrands = append(c.LikedBrands, brand)
		} else {
			c.DislikedBrands = append(c.DislikedBrands, brand)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("profile: iterate brand preferences: %w", err)
	}
	return &c, nil
}

// Save inserts or updates a customer and replaces their brand preferences.
func (s *SQLiteStore) Save(ctx context.Context, c *Customer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("profile: begin save: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO customers (token, name, age, gender, description, style_preferences)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			name = excluded.name,
			age = excluded.age,
			gender = excluded.gender,
			description = excluded.description,
			style_preferences = excluded.style_preferences`,
		c.Token, c.Name, c.Age, c.Gender, c.Description, c.StylePreferences)
	if err != nil {
		return fmt.Errorf("profile: save customer: %w", err)
	}

	if c.ID == 0 {
		if id, err := res.LastInsertId(); err == nil && id > 0 {
			c.ID = id
		} else {
			row := tx.QueryRowContext(ctx, `SELECT id FROM customers WHERE token = ?`, c.Token)
			if err := row.Scan(&c.ID); err != nil {
				return fmt.Errorf("profile: resolve customer id: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM brand_preferences WHERE customer_id = ?`, c.ID); err != nil {
		return fmt.Errorf("profile: clear brand preferences: %w", err)
	}
	for _, brand := range c.LikedBrands {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO brand_preferences (customer_id, brand_name, preference) VALUES (?, ?, 'like')`,
			c.ID, brand); err != nil {
			return fmt.Errorf("profile: save liked brand: %w", err)
		}
	}
	for _, brand := range c.DislikedBrands {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO brand_preferences (customer_id, brand_name, preference) VALUES (?, ?, 'dislike')`,
			c.ID, brand); err != nil {
			return fmt.Errorf("profile: save disliked brand: %w", err)
		}
	}

	return tx.Commit()
}

// Seed inserts demo customers when the table is empty.
func (s *SQLiteStore) Seed(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&count); err != nil {
		return fmt.Errorf("profile: count customers: %w", err)
	}
	if count > 0 {
		return nil
	}
	demo := []*Customer{
		{
			Token:            "demo-anna",
			Name:             "Анна",
			Age:              29,
			Gender:           "Женский",
			Description:      "Любит минимализм и монохромные образы",
			StylePreferences: "Элегантный кэжуал, натуральные ткани",
			LikedBrands:      []string{"Brunello Cucinelli", "The Row"},
			DislikedBrands:   []string{"EA7"},
		},
		{
			Token:            "demo-mikhail",
			Name:             "Михаил",
			Age:              35,
			Gender:           "Мужской",
			Description:      "Предпочитает классику с элементами спорта",
			StylePreferences: "Смарт-кэжуал",
			LikedBrands:      []string{"Gucci"},
		},
	}
	for _, c := range demo {
		if err := s.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
