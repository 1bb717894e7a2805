package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragsql/ragsql/internal/config"
	"github.com/ragsql/ragsql/internal/errors"
	"github.com/ragsql/ragsql/internal/types"
)

func newTestCatalog(t *testing.T) *DuckDBCatalog {
	t.Helper()

	catalog, err := NewDuckDBCatalog(filepath.Join(t.TempDir(), "catalog.db"), config.IndexConfig{
		MaxConnections: 4,
		MaxIdleConns:   2,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = catalog.Close() })

	require.NoError(t, catalog.Initialize(context.Background()))

	return catalog
}

func testConnection() types.DatabaseConnection {
	return types.DatabaseConnection{
		Host:     "localhost",
		Port:     5432,
		Username: "app",
		Password: "s3cret",
		Name:     "cities",
	}
}

func TestRegisterDatabaseAndGetCredentials(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, catalog.RegisterDatabase(ctx, testConnection()))

	conn, err := catalog.GetDatabaseCredentials(ctx, "cities", "s3cret")
	require.NoError(t, err)

	assert.Equal(t, "localhost", conn.Host)
	assert.Equal(t, 5432, conn.Port)
	assert.Equal(t, "app", conn.Username)
	assert.Equal(t, "s3cret", conn.Password)
	assert.Equal(t, "cities", conn.Scope())
}

func TestGetCredentialsWrongPassword(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, catalog.RegisterDatabase(ctx, testConnection()))

	_, err := catalog.GetDatabaseCredentials(ctx, "cities", "wrong")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
}

func TestGetCredentialsUnknownDatabase(t *testing.T) {
	catalog := newTestCatalog(t)

	_, err := catalog.GetDatabaseCredentials(context.Background(), "nope", "pw")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestRegisterDatabaseDuplicate(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, catalog.RegisterDatabase(ctx, testConnection()))

	err := catalog.RegisterDatabase(ctx, testConnection())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestRegisterDatabaseValidation(t *testing.T) {
	catalog := newTestCatalog(t)

	err := catalog.RegisterDatabase(context.Background(), types.DatabaseConnection{Name: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestRegisterAndListTables(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, catalog.RegisterTable(ctx, "cities", types.TableDescriptor{
		TableName: "city_stats",
		Summary:   "Population and country per city",
	}))
	require.NoError(t, catalog.RegisterTable(ctx, "cities", types.TableDescriptor{
		TableName: "airports",
	}))

	tables, err := catalog.GetRegisteredTables(ctx, "cities")
	require.NoError(t, err)
	require.Len(t, tables, 2)

	assert.Equal(t, "airports", tables[0].TableName)
	assert.Equal(t, "city_stats", tables[1].TableName)
	assert.Equal(t, "Population and country per city", tables[1].Summary)
}

func TestRegisterTablePersistsSchemaText(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	ddl := `CREATE SCHEMA IF NOT EXISTS "public";
CREATE TABLE IF NOT EXISTS "public"."city_stats" (
    "city_name" character varying,
    "population" integer
);`

	require.NoError(t, catalog.RegisterTable(ctx, "cities", types.TableDescriptor{
		TableName:  "city_stats",
		SchemaText: ddl,
	}))

	tables, err := catalog.GetRegisteredTables(ctx, "cities")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, ddl, tables[0].SchemaText)
}

func TestRegisterTableDuplicate(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	table := types.TableDescriptor{TableName: "city_stats"}

	require.NoError(t, catalog.RegisterTable(ctx, "cities", table))

	err := catalog.RegisterTable(ctx, "cities", table)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestRegisterTableScopedByDatabase(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	table := types.TableDescriptor{TableName: "city_stats"}

	require.NoError(t, catalog.RegisterTable(ctx, "cities", table))
	require.NoError(t, catalog.RegisterTable(ctx, "geo", table))

	tables, err := catalog.GetRegisteredTables(ctx, "geo")
	require.NoError(t, err)
	assert.Len(t, tables, 1)
}

func TestDeleteTable(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, catalog.RegisterTable(ctx, "cities", types.TableDescriptor{
		TableName: "city_stats",
	}))

	require.NoError(t, catalog.DeleteTable(ctx, "cities", "city_stats"))

	tables, err := catalog.GetRegisteredTables(ctx, "cities")
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestDeleteTableMissing(t *testing.T) {
	catalog := newTestCatalog(t)

	err := catalog.DeleteTable(context.Background(), "cities", "ghost")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}
