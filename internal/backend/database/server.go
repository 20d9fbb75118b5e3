package database

import (
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
)

const postgresCreateTable = `CREATE TABLE IF NOT EXISTS history (
		id BIGSERIAL PRIMARY KEY,
		image TEXT,
		result TEXT,
		accuracy INTEGER,
		created_at TEXT
	)`

const mysqlCreateTable = `CREATE TABLE IF NOT EXISTS history (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		image TEXT,
		result TEXT,
		accuracy INT,
		created_at VARCHAR(64)
	)`

// NewPostgresDatabase returns an uninitialized history store backed by Postgres (pgx).
func NewPostgresDatabase(connectionString string) (*BunDatabase, error) {
	return newBunDatabase("pgx", connectionString, pgdialect.New(), postgresCreateTable)
}

// NewMySQLDatabase returns an uninitialized history store backed by MySQL.
func NewMySQLDatabase(connectionString string) (*BunDatabase, error) {
	return newBunDatabase("mysql", connectionString, mysqldialect.New(), mysqlCreateTable)
}
