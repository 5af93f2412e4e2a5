// Package dbtest opens throwaway sqlite databases carrying the billing
// schema, plus fixture helpers for the reference registries.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// schema mirrors internal/migration/migrations in a dialect sqlite accepts.
var schema = []string{
	`CREATE TABLE buildings (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE fee_types (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		default_price NUMERIC(18,0) NOT NULL CHECK (default_price >= 0),
		category TEXT NOT NULL CHECK (category IN ('mandatory', 'voluntary')),
		description TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE households (
		id BIGINT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		owner_name TEXT NOT NULL DEFAULT '',
		building_id BIGINT NOT NULL REFERENCES buildings (id),
		apartment_no TEXT NOT NULL DEFAULT '',
		area NUMERIC(10,2),
		contact_email TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE fee_quotas (
		id BIGINT PRIMARY KEY,
		household_id BIGINT NOT NULL REFERENCES households (id),
		fee_type_id BIGINT NOT NULL REFERENCES fee_types (id),
		quantity NUMERIC(18,4) NOT NULL DEFAULT 1,
		note TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE (household_id, fee_type_id)
	)`,
	`CREATE TABLE billing_periods (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'living_fee',
		starts_on DATE NOT NULL,
		ends_on DATE NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE price_overrides (
		id BIGINT PRIMARY KEY,
		fee_type_id BIGINT NOT NULL REFERENCES fee_types (id),
		building_id BIGINT NOT NULL REFERENCES buildings (id),
		unit_price NUMERIC(18,0) NOT NULL CHECK (unit_price >= 0),
		note TEXT,
		applied_at TIMESTAMP NOT NULL,
		UNIQUE (fee_type_id, building_id)
	)`,
	`CREATE TABLE invoices (
		id BIGINT PRIMARY KEY,
		household_id BIGINT NOT NULL REFERENCES households (id),
		period_id BIGINT NOT NULL REFERENCES billing_periods (id),
		total_due NUMERIC(18,0) NOT NULL CHECK (total_due >= 0),
		total_paid NUMERIC(18,0) NOT NULL DEFAULT 0 CHECK (total_paid >= 0),
		status TEXT NOT NULL CHECK (status IN ('unpaid', 'partially_paid', 'paid')),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (household_id, period_id)
	)`,
	`CREATE TABLE invoice_lines (
		id BIGINT PRIMARY KEY,
		invoice_id BIGINT NOT NULL REFERENCES invoices (id) ON DELETE CASCADE,
		fee_type_id BIGINT NOT NULL REFERENCES fee_types (id),
		fee_type_name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		quantity NUMERIC(18,4) NOT NULL,
		unit_price NUMERIC(18,0) NOT NULL,
		line_total NUMERIC(18,0) NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE payment_events (
		id BIGINT PRIMARY KEY,
		invoice_id BIGINT NOT NULL REFERENCES invoices (id),
		amount NUMERIC(18,0) NOT NULL CHECK (amount > 0),
		method TEXT NOT NULL,
		payer TEXT NOT NULL DEFAULT '',
		note TEXT,
		external_txn_id TEXT UNIQUE,
		response_code TEXT,
		bank_code TEXT,
		raw_params TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE event_outbox (
		id BIGINT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_id BIGINT NOT NULL,
		dedupe_key TEXT NOT NULL UNIQUE,
		payload TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		published_at TIMESTAMP
	)`,
}

var seq atomic.Int64

// Open returns a private in-memory database with the schema applied.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

// SingleConn limits db to one connection. Shared-cache sqlite reports table
// lock conflicts instead of waiting, so concurrent writers queue on the pool.
func SingleConn(t testing.TB, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
}

// Node returns a snowflake node for fixture ids.
func Node(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// Fixtures inserts reference rows directly, the way the registries that own
// them would.
type Fixtures struct {
	t    testing.TB
	db   *gorm.DB
	node *snowflake.Node
}

func NewFixtures(t testing.TB, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db, node: Node(t)}
}

func (f *Fixtures) exec(sql string, args ...any) {
	f.t.Helper()
	if err := f.db.Exec(sql, args...).Error; err != nil {
		f.t.Fatalf("fixture: %v", err)
	}
}

func (f *Fixtures) Building(name string) snowflake.ID {
	f.t.Helper()
	id := f.node.Generate()
	f.exec(`INSERT INTO buildings (id, name, created_at) VALUES (?, ?, ?)`, id, name, time.Now().UTC())
	return id
}

func (f *Fixtures) FeeType(name, unit string, price int64) snowflake.ID {
	f.t.Helper()
	id := f.node.Generate()
	now := time.Now().UTC()
	f.exec(`INSERT INTO fee_types (id, name, unit, default_price, category, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'mandatory', true, ?, ?)`,
		id, name, unit, decimal.NewFromInt(price), now, now)
	return id
}

func (f *Fixtures) DeactivateFeeType(id snowflake.ID) {
	f.t.Helper()
	f.exec(`UPDATE fee_types SET active = false WHERE id = ?`, id)
}

func (f *Fixtures) SetDefaultPrice(id snowflake.ID, price int64) {
	f.t.Helper()
	f.exec(`UPDATE fee_types SET default_price = ?, updated_at = ? WHERE id = ?`,
		decimal.NewFromInt(price), time.Now().UTC(), id)
}

func (f *Fixtures) Household(code string, buildingID snowflake.ID, area int64) snowflake.ID {
	f.t.Helper()
	id := f.node.Generate()
	f.exec(`INSERT INTO households (id, code, owner_name, building_id, apartment_no, area, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, code, "Owner "+code, buildingID, code, decimal.NewFromInt(area), time.Now().UTC())
	return id
}

func (f *Fixtures) Quota(householdID, feeTypeID snowflake.ID, quantity decimal.Decimal) snowflake.ID {
	f.t.Helper()
	id := f.node.Generate()
	f.exec(`INSERT INTO fee_quotas (id, household_id, fee_type_id, quantity, active) VALUES (?, ?, ?, ?, true)`,
		id, householdID, feeTypeID, quantity)
	return id
}

func (f *Fixtures) Period(name string, startsOn, endsOn time.Time) snowflake.ID {
	f.t.Helper()
	id := f.node.Generate()
	f.exec(`INSERT INTO billing_periods (id, name, kind, starts_on, ends_on, created_at) VALUES (?, ?, 'living_fee', ?, ?, ?)`,
		id, name, startsOn, endsOn, time.Now().UTC())
	return id
}

// Invoice inserts an unpaid invoice without lines.
func (f *Fixtures) Invoice(householdID, periodID snowflake.ID, totalDue int64) snowflake.ID {
	f.t.Helper()
	id := f.node.Generate()
	now := time.Now().UTC()
	f.exec(`INSERT INTO invoices (id, household_id, period_id, total_due, total_paid, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, 'unpaid', ?, ?)`,
		id, householdID, periodID, decimal.NewFromInt(totalDue), now, now)
	return id
}

// Count returns the number of rows in table matching the optional where clause.
func Count(t testing.TB, db *gorm.DB, table, where string, args ...any) int64 {
	t.Helper()
	query := "SELECT COUNT(1) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var count int64
	if err := db.Raw(query, args...).Scan(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}
