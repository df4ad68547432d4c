// Package database はPostgreSQLストアの接続とスキーマ管理を提供する。
//
// スキーマは users・identities・interviews・feedback の4テーブルで、
// migrations/ 以下のSQLをバイナリに埋め込んで golang-migrate で適用する。
// Firestoreストア使用時はこのパッケージを経由しない。
package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator は埋め込みSQLをソースとするmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations は未適用のマイグレーションをすべて適用し、適用後のバージョンをログに出す。
// すでに最新の場合はエラーなしで返る。dirty状態のDBには適用せずエラーを返す。
func RunMigrations(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	before, dirty, err := schemaVersion(m)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty; fix it manually before migrating", before)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	after, _, err := schemaVersion(m)
	if err != nil {
		return err
	}
	slog.Info("schema version",
		slog.Uint64("from", uint64(before)),
		slog.Uint64("to", uint64(after)),
	)
	return nil
}

// schemaVersion は現在のスキーマバージョンを返す。未適用の場合は0。
func schemaVersion(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, dirty, nil
}

// MigrationNames は埋め込まれたupマイグレーションのファイル名を昇順で返す。
func MigrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
