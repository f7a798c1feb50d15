package acknowledgment

import (
	"testing"
	"time"

	"github.com/acted/rules-engine/internal/dispatcher"
	"github.com/acted/rules-engine/internal/rule"
	"github.com/acted/rules-engine/internal/tests"
	"github.com/acted/rules-engine/pkg/value"
	"github.com/jmoiron/sqlx"
)

const (
	acknowledgmentsDropTableV1 = `DROP TABLE IF EXISTS acknowledgments_v1;`
	acknowledgmentsTableV1     = `CREATE TABLE IF NOT EXISTS acknowledgments_v1 (
		id serial PRIMARY KEY,
		ack_key varchar(100) NOT NULL,
		scope varchar(20) NOT NULL,
		user_id varchar(100) NOT NULL,
		session_id varchar(100) NOT NULL,
		accepted boolean NOT NULL,
		consumed boolean NOT NULL,
		created_at timestamptz NOT NULL
	);`
)

func dbInitRepo(dbClient *sqlx.DB, t *testing.T) {
	dbDestroyRepo(dbClient, t)
	tests.DBExec(dbClient, acknowledgmentsTableV1, t, true)
}

func dbDestroyRepo(dbClient *sqlx.DB, t *testing.T) {
	tests.DBExec(dbClient, acknowledgmentsDropTableV1, t, true)
}

func testRepository(t *testing.T, r Repository) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	decisions := []Decision{
		{AckKey: "newsletter", Scope: rule.ScopePerUser, UserID: "u1", Accepted: false, CreatedAt: t0},
		{AckKey: "eu_terms_v1", Scope: rule.ScopePerOrder, UserID: "u1", Accepted: true, CreatedAt: t0.Add(time.Minute)},
		{AckKey: "cookies", Scope: rule.ScopePerSession, SessionID: "s1", Accepted: true, CreatedAt: t0.Add(2 * time.Minute)},
		{AckKey: "eu_terms_v1", Scope: rule.ScopePerOrder, UserID: "u2", Accepted: true, CreatedAt: t0},
	}
	for _, d := range decisions {
		if _, err := r.Save(d); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.Save(Decision{AckKey: "x", Scope: rule.ScopePerUser}); err == nil {
		t.Error("a per_user decision without user must be rejected")
	}

	active, err := r.GetActive(Subject{UserID: "u1", SessionID: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"newsletter", "eu_terms_v1", "cookies"}
	if len(active) != len(want) {
		t.Fatalf("got %d active decisions, want %d", len(active), len(want))
	}
	for i, d := range active {
		if d.AckKey != want[i] {
			t.Errorf("position %d: got %s, want %s", i, d.AckKey, want[i])
		}
	}

	n, err := r.ConsumeOrder(Subject{UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 consumed decision, got %d", n)
	}
	active, _ = r.GetActive(Subject{UserID: "u1"})
	if len(active) != 1 || active[0].AckKey != "newsletter" {
		t.Errorf("per_order decision must be consumed, got %+v", active)
	}
	other, _ := r.GetActive(Subject{UserID: "u2"})
	if len(other) != 1 {
		t.Error("consuming an order must not touch other users")
	}
	if none, _ := r.GetActive(Subject{}); len(none) != 0 {
		t.Error("an empty subject has no decisions")
	}
}

func TestMemoryRepository(t *testing.T) {
	testRepository(t, NewMemoryRepository())
}

func TestPostgresRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgresql test in short mode")
	}
	db := tests.DBClient(t)
	defer dbDestroyRepo(db, t)
	dbInitRepo(db, t)

	testRepository(t, NewPostgresRepository(db))
}

func TestInject(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := value.MustParse(`{"user": {"id": "u1"}, "acknowledgments": {"newsletter": true}}`)
	err := Inject(&ctx, []Decision{
		{AckKey: "eu_terms_v1", Scope: rule.ScopePerOrder, Accepted: false, CreatedAt: t0},
		{AckKey: "eu_terms_v1", Scope: rule.ScopePerOrder, Accepted: true, CreatedAt: t0.Add(time.Minute)},
		{AckKey: "newsletter", Scope: rule.ScopePerUser, Accepted: false, CreatedAt: t0},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !dispatcher.Acknowledged(ctx, "eu_terms_v1") {
		t.Errorf("latest decision must win: %s", ctx.Get("acknowledgments"))
	}
	if !dispatcher.Acknowledged(ctx, "newsletter") {
		t.Error("caller supplied acknowledgments must be kept")
	}

	empty := value.MustParse(`{}`)
	if err := Inject(&empty, []Decision{{AckKey: "k", Scope: rule.ScopePerSession, Accepted: true}}); err != nil {
		t.Fatal(err)
	}
	if !dispatcher.Acknowledged(empty, "k") {
		t.Error("acknowledgments map must be created")
	}
}
