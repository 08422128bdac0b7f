// SPDX-License-Identifier: ice License 1.0

package cache

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"strings"
	"sync"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	_ "github.com/mattn/go-sqlite3"
)

type (
	dbClient struct {
		*sqlx.DB

		stmtCacheMx *sync.RWMutex
		stmtCache   map[string]*sqlx.NamedStmt
	}
)

var (
	//go:embed DDL.sql
	ddl string
)

func openCache(target string) *dbClient {
	client := &dbClient{
		DB:          sqlx.MustConnect("sqlite3", target),
		stmtCacheMx: new(sync.RWMutex),
		stmtCache:   make(map[string]*sqlx.NamedStmt),
	}
	// SQLite has a single writer anyway; capping the pool at one connection
	// keeps :memory: targets on the same database and serializes mutations
	// per statement instead of per process.
	client.SetMaxOpenConns(1)
	client.Mapper = reflectx.NewMapperFunc("cache", camelToSnake)

	for _, statement := range strings.Split(ddl, "--------") {
		client.MustExec(statement)
	}

	return client
}

func (db *dbClient) exec(ctx context.Context, sql string, arg any) (rowsAffected int64, err error) {
	stmt, err := db.prepare(ctx, sql, hashSQL(sql))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to prepare exec sql: `%v`", sql)
	}

	result, err := stmt.ExecContext(ctx, arg)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to exec prepared sql: `%v`", sql)
	}
	if rowsAffected, err = result.RowsAffected(); err != nil {
		return 0, errors.Wrapf(err, "failed to process rows affected for exec prepared sql: `%v`", sql)
	}

	return rowsAffected, nil
}

func (db *dbClient) getOne(ctx context.Context, dest any, sql string, arg any) (found bool, err error) {
	stmt, err := db.prepare(ctx, sql, hashSQL(sql))
	if err != nil {
		return false, errors.Wrapf(err, "failed to prepare get sql: `%v`", sql)
	}

	rows, err := stmt.QueryxContext(ctx, arg)
	if err != nil {
		return false, errors.Wrapf(err, "failed to query prepared sql: `%v`", sql)
	}
	defer rows.Close()

	if !rows.Next() {
		return false, errors.Wrapf(rows.Err(), "failed to fetch row for sql: `%v`", sql)
	}
	if err = rows.StructScan(dest); err != nil {
		return false, errors.Wrapf(err, "failed to scan row for sql: `%v`", sql)
	}

	return true, nil
}

func (db *dbClient) prepare(ctx context.Context, sql, hash string) (stmt *sqlx.NamedStmt, err error) {
	db.stmtCacheMx.RLock()
	stmt, found := db.stmtCache[hash]
	db.stmtCacheMx.RUnlock()
	if found {
		return stmt, nil
	}

	db.stmtCacheMx.Lock()
	stmt, found = db.stmtCache[hash]
	if found {
		db.stmtCacheMx.Unlock()

		return stmt, nil
	}

	stmt, err = db.PrepareNamedContext(ctx, sql)
	if err == nil {
		db.stmtCache[hash] = stmt
	}
	db.stmtCacheMx.Unlock()

	return stmt, err
}

func hashSQL(sql string) (hash string) {
	sum := sha256.Sum256([]byte(sql))

	return string(sum[:])
}

func camelToSnake(in string) string {
	var out strings.Builder
	runes := []rune(in)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && !unicode.IsUpper(runes[i-1]) {
				out.WriteByte('_')
			}
			out.WriteRune(unicode.ToLower(r))
		} else {
			out.WriteRune(r)
		}
	}

	return out.String()
}
