package tests

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/myrteametrics/myrtea-sdk/v5/postgres"
)

// DBClient returns a postgresql client for the rules-engine integration tests.
// It targets localhost by default. RULES_TEST_POSTGRESQL_HOSTNAME, RULES_TEST_POSTGRESQL_PORT
// and RULES_TEST_POSTGRESQL_DBNAME point it to another instance (a CI service container for example).
func DBClient(t *testing.T) *sqlx.DB {
	t.Helper()
	credentials := postgres.Credentials{
		URL:      envOr("RULES_TEST_POSTGRESQL_HOSTNAME", "localhost"),
		Port:     envOr("RULES_TEST_POSTGRESQL_PORT", "5432"),
		DbName:   envOr("RULES_TEST_POSTGRESQL_DBNAME", "postgres"),
		User:     "postgres",
		Password: "postgres",
	}
	dbClient, err := postgres.DbConnection(credentials)
	if err != nil {
		t.Fatalf("couldn't connect to the test database %s:%s: %s", credentials.URL, credentials.Port, err)
	}
	return dbClient
}

// DBExec executes a DDL or fixture statement, optionally failing the test immediately
func DBExec(dbClient *sqlx.DB, query string, t *testing.T, failNow bool) {
	t.Helper()
	_, err := dbClient.Exec(query)
	if err != nil {
		t.Error(err)
		if failNow {
			t.FailNow()
		}
	}
}

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
