package database

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := Options{User: "app", Pass: "p@ss", Host: "db", Port: "3306", Name: "hotels"}.DSN()
	assert.True(t, strings.HasPrefix(dsn, "app:p@ss@tcp(db:3306)/hotels?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Contains(t, dsn, "clientFoundRows=true")
}

func TestStatementsCoverTables(t *testing.T) {
	stmts := Statements()
	var tables []string
	re := regexp.MustCompile(`CREATE TABLE IF NOT EXISTS (\w+)`)
	for _, s := range stmts {
		m := re.FindStringSubmatch(s)
		require.NotNil(t, m, s)
		tables = append(tables, m[1])
	}
	assert.Equal(t, []string{
		"users", "refresh_tokens", "hotels", "rooms", "inventory",
		"hotel_min_prices", "bookings", "guests", "booking_guests",
	}, tables)
}

func TestMigrateRunsEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, s := range Statements() {
		mock.ExpectExec(regexp.QuoteMeta(s)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnError(assert.AnError)
	err = Migrate(context.Background(), db)
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorContains(t, err, "statement 1")
}
