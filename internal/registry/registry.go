// Package registry is the authoritative catalog of registered databases and
// tables. The schema index is derived state; on disagreement the registry
// wins and the index is rebuilt from it.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
	"golang.org/x/crypto/bcrypt"

	"github.com/ragsql/ragsql/internal/config"
	"github.com/ragsql/ragsql/internal/errors"
	"github.com/ragsql/ragsql/internal/types"
)

// Catalog stores registered databases and their table lists
type Catalog interface {
	Initialize(ctx context.Context) error

	// RegisterDatabase stores connection details with a bcrypt hash of the
	// password. The plaintext is never persisted.
	RegisterDatabase(ctx context.Context, conn types.DatabaseConnection) error

	// GetDatabaseCredentials verifies the supplied password against the
	// stored hash and returns a connection carrying the plaintext password
	// for this request only
	GetDatabaseCredentials(ctx context.Context, name, password string) (types.DatabaseConnection, error)

	// RegisterTable adds a table to a database's registered set. A duplicate
	// table name is a validation error.
	RegisterTable(ctx context.Context, scope string, table types.TableDescriptor) error

	DeleteTable(ctx context.Context, scope, tableName string) error

	// GetRegisteredTables returns the authoritative table list for a scope
	GetRegisteredTables(ctx context.Context, scope string) ([]types.TableDescriptor, error)

	Close() error
}

// DuckDBCatalog implements Catalog over an embedded DuckDB file
type DuckDBCatalog struct {
	db   *sql.DB
	path string
}

// NewDuckDBCatalog opens (creating if needed) the catalog at the given
// path. Pool sizing follows the index configuration, which the catalog
// shares a deployment with.
func NewDuckDBCatalog(dbPath string, cfg config.IndexConfig) (*DuckDBCatalog, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}

	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping catalog: %w", err)
	}

	return &DuckDBCatalog{db: db, path: dbPath}, nil
}

// Initialize creates the catalog tables
func (c *DuckDBCatalog) Initialize(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS registered_databases (
		name VARCHAR PRIMARY KEY,
		host VARCHAR NOT NULL,
		port INTEGER NOT NULL,
		username VARCHAR NOT NULL,
		password_hash VARCHAR NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS registered_tables (
		database_name VARCHAR NOT NULL,
		table_name VARCHAR NOT NULL,
		summary TEXT,
		schema_text TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (database_name, table_name)
	);`

	if _, err := c.db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to initialize catalog")
	}

	return nil
}

// RegisterDatabase hashes the password and stores the connection details
func (c *DuckDBCatalog) RegisterDatabase(ctx context.Context, conn types.DatabaseConnection) error {
	if conn.Name == "" || conn.Host == "" || conn.Username == "" {
		return errors.New(errors.ErrTypeValidation,
			"database registration requires name, host and username")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(conn.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeInternal, "failed to hash password")
	}

	_, err = c.db.ExecContext(ctx, `
	INSERT INTO registered_databases (name, host, port, username, password_hash)
	VALUES (?, ?, ?, ?, ?)`,
		conn.Name, conn.Host, conn.Port, conn.Username, string(hash))
	if err != nil {
		if exists, checkErr := c.databaseExists(ctx, conn.Name); checkErr == nil && exists {
			return errors.Newf(errors.ErrTypeValidation,
				"database %q is already registered", conn.Name)
		}

		return errors.Wrapf(err, errors.ErrTypeDatabase,
			"failed to register database %q", conn.Name)
	}

	return nil
}

// GetDatabaseCredentials verifies the password and returns a usable connection
func (c *DuckDBCatalog) GetDatabaseCredentials(
	ctx context.Context,
	name, password string,
) (types.DatabaseConnection, error) {
	var (
		conn types.DatabaseConnection
		hash string
	)

	err := c.db.QueryRowContext(ctx, `
	SELECT name, host, port, username, password_hash
	FROM registered_databases WHERE name = ?`, name).
		Scan(&conn.Name, &conn.Host, &conn.Port, &conn.Username, &hash)

	if err == sql.ErrNoRows {
		return types.DatabaseConnection{}, errors.Newf(errors.ErrTypeNotFound,
			"database %q is not registered", name).
			WithSuggestion("Register the database first with register-db")
	}

	if err != nil {
		return types.DatabaseConnection{}, errors.Wrapf(err, errors.ErrTypeDatabase,
			"failed to look up database %q", name)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return types.DatabaseConnection{}, errors.Newf(errors.ErrTypeAuth,
			"invalid password for database %q", name)
	}

	conn.Password = password

	return conn, nil
}

// RegisterTable adds a table to the database's registered set
func (c *DuckDBCatalog) RegisterTable(ctx context.Context, scope string, table types.TableDescriptor) error {
	if table.TableName == "" {
		return errors.New(errors.ErrTypeValidation, "table name is required")
	}

	exists, err := c.tableExists(ctx, scope, table.TableName)
	if err != nil {
		return err
	}

	if exists {
		return errors.Newf(errors.ErrTypeValidation,
			"table %q is already registered for database %q", table.TableName, scope).
			WithSuggestion("Drop the table first if you want to replace its schema document")
	}

	_, err = c.db.ExecContext(ctx, `
	INSERT INTO registered_tables (database_name, table_name, summary, schema_text)
	VALUES (?, ?, ?, ?)`,
		scope, table.TableName, table.Summary, table.SchemaText)
	if err != nil {
		return errors.Wrapf(err, errors.ErrTypeDatabase,
			"failed to register table %q", table.TableName)
	}

	return nil
}

// DeleteTable removes a table from the registered set
func (c *DuckDBCatalog) DeleteTable(ctx context.Context, scope, tableName string) error {
	result, err := c.db.ExecContext(ctx, `
	DELETE FROM registered_tables WHERE database_name = ? AND table_name = ?`,
		scope, tableName)
	if err != nil {
		return errors.Wrapf(err, errors.ErrTypeDatabase,
			"failed to delete table %q", tableName)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return errors.Newf(errors.ErrTypeNotFound,
			"table %q is not registered for database %q", tableName, scope)
	}

	return nil
}

// GetRegisteredTables returns the authoritative table list in name order
func (c *DuckDBCatalog) GetRegisteredTables(ctx context.Context, scope string) ([]types.TableDescriptor, error) {
	rows, err := c.db.QueryContext(ctx, `
	SELECT table_name, summary, schema_text FROM registered_tables
	WHERE database_name = ? ORDER BY table_name`, scope)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrTypeDatabase,
			"failed to list tables for database %q", scope)
	}
	defer rows.Close()

	var tables []types.TableDescriptor

	for rows.Next() {
		var (
			table      types.TableDescriptor
			summary    sql.NullString
			schemaText sql.NullString
		)

		if err := rows.Scan(&table.TableName, &summary, &schemaText); err != nil {
			return nil, errors.Wrapf(err, errors.ErrTypeDatabase,
				"failed to scan table row for database %q", scope)
		}

		table.Summary = summary.String
		table.SchemaText = schemaText.String
		tables = append(tables, table)
	}

	return tables, rows.Err()
}

// Close closes the backing store
func (c *DuckDBCatalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}

	return nil
}

func (c *DuckDBCatalog) databaseExists(ctx context.Context, name string) (bool, error) {
	var count int

	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registered_databases WHERE name = ?`, name).Scan(&count)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (c *DuckDBCatalog) tableExists(ctx context.Context, scope, tableName string) (bool, error) {
	var count int

	err := c.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM registered_tables
	WHERE database_name = ? AND table_name = ?`, scope, tableName).Scan(&count)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrTypeDatabase,
			"failed to check table %q", tableName)
	}

	return count > 0, nil
}
