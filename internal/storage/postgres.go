package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/xaenox/watchlater-bot/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c DatabaseConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// PostgresStorage keeps items in the items table; read_at is stamped with the database clock
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ Storage = (*PostgresStorage)(nil)

func NewPostgresStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	return OpenPostgres(ctx, config.ConnString(), logger)
}

// OpenPostgres connects using a lib/pq connection string or URL and applies the schema
func OpenPostgres(ctx context.Context, connStr string, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	s.logger.Debug("Database schema is up to date")
	return nil
}

func (s *PostgresStorage) Set(ctx context.Context, key models.Key, item models.Item) error {
	query := `
		INSERT INTO items (key, author, content, read_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET author = EXCLUDED.author, content = EXCLUDED.content, read_at = EXCLUDED.read_at`

	if _, err := s.db.ExecContext(ctx, query, string(key), item.Author, item.Content, item.ReadAt); err != nil {
		return fmt.Errorf("error saving item %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStorage) Get(ctx context.Context, key models.Key) (*models.Item, error) {
	query := `SELECT author, content, read_at FROM items WHERE key = $1`

	var (
		item   models.Item
		readAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, string(key)).Scan(&item.Author, &item.Content, &readAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying item %s: %w", key, err)
	}

	if readAt.Valid {
		item.MarkRead(readAt.Time)
	}
	return &item, nil
}

func (s *PostgresStorage) GetAll(ctx context.Context) (map[models.Key]models.Item, error) {
	query := `
		SELECT key, author, content
		FROM items
		WHERE read_at IS NULL`

	return s.queryUnread(ctx, query)
}

func (s *PostgresStorage) GetUserItems(ctx context.Context, user string) (map[models.Key]models.Item, error) {
	query := `
		SELECT key, author, content
		FROM items
		WHERE read_at IS NULL AND author = $1`

	return s.queryUnread(ctx, query, user)
}

func (s *PostgresStorage) queryUnread(ctx context.Context, query string, args ...any) (map[models.Key]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying items: %w", err)
	}
	defer rows.Close()

	items := make(map[models.Key]models.Item)
	for rows.Next() {
		var (
			key  string
			item models.Item
		)
		if err := rows.Scan(&key, &item.Author, &item.Content); err != nil {
			return nil, fmt.Errorf("error scanning item: %w", err)
		}
		items[models.Key(key)] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

func (s *PostgresStorage) GetRandom(ctx context.Context) (*Entry, error) {
	query := `
		SELECT key, author, content
		FROM items
		WHERE read_at IS NULL
		ORDER BY random()
		LIMIT 1`

	var (
		key   string
		entry Entry
	)
	err := s.db.QueryRowContext(ctx, query).Scan(&key, &entry.Item.Author, &entry.Item.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying random item: %w", err)
	}

	entry.Key = models.Key(key)
	return &entry, nil
}

func (s *PostgresStorage) MarkAsRead(ctx context.Context, key models.Key) error {
	query := `UPDATE items SET read_at = now() WHERE key = $1`

	result, err := s.db.ExecContext(ctx, query, string(key))
	if err != nil {
		return fmt.Errorf("error marking item %s as read: %w", key, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *PostgresStorage) Delete(ctx context.Context, key models.Key) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE key = $1`, string(key)); err != nil {
		return fmt.Errorf("error deleting item %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStorage) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("error pinging database: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
