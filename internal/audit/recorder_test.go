package audit

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/acted/rules-engine/internal/tests"
	"github.com/acted/rules-engine/pkg/value"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	executionsDropTableV1 = `DROP TABLE IF EXISTS rule_executions_v1;`
	executionsTableV1     = `CREATE TABLE IF NOT EXISTS rule_executions_v1 (
		execution_id varchar(36) PRIMARY KEY,
		entry_point varchar(100) NOT NULL,
		rule_code varchar(100) NOT NULL,
		rule_version integer NOT NULL,
		condition_result boolean NOT NULL,
		input_context jsonb NOT NULL,
		output_data jsonb NOT NULL,
		actions_executed jsonb NOT NULL,
		duration_ms double precision NOT NULL,
		condition_evaluation_time_ms double precision NOT NULL,
		template_render_time_ms double precision NOT NULL,
		action_execution_time_ms double precision NOT NULL,
		success boolean NOT NULL,
		truncated boolean NOT NULL,
		error_message text NOT NULL,
		error_details jsonb NOT NULL,
		created_at timestamptz NOT NULL
	);`
)

func dbInitRepo(dbClient *sqlx.DB, t *testing.T) {
	dbDestroyRepo(dbClient, t)
	tests.DBExec(dbClient, executionsTableV1, t, true)
}

func dbDestroyRepo(dbClient *sqlx.DB, t *testing.T) {
	tests.DBExec(dbClient, executionsDropTableV1, t, true)
}

func testRecord(id string, entryPoint string) Record {
	index := 1
	return Record{
		ExecutionID:     id,
		EntryPoint:      entryPoint,
		RuleCode:        "vat_uk_standard",
		RuleVersion:     2,
		ConditionResult: true,
		InputContext:    value.MustParse(`{"cart_item": {"net_amount": "50.00"}}`),
		OutputData:      []byte(`{"blocked":false}`),
		ActionsExecuted: []RuleEntry{
			{RuleCode: "vat_uk_standard", RuleVersion: 2, Priority: 85, ConditionResult: true,
				ActionsCompleted: []string{"update", "stop"}, StopProcessing: true, Status: "fired"},
		},
		DurationMs:   1.5,
		Success:      false,
		ErrorMessage: "1 rule failed",
		ErrorDetails: []ErrorDetail{{RuleCode: "vat_uk_standard", Kind: "action_execution", ActionIndex: &index,
			ErrorCode: "function_failed", Message: "boom"}},
		CreatedAt: time.Now().Truncate(time.Millisecond).UTC(),
	}
}

func testRepository(t *testing.T, r Repository) {
	for i := 0; i < 3; i++ {
		if err := r.Create(testRecord(fmt.Sprintf("exec-%d", i), "calculate_vat_per_item")); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Create(testRecord("exec-other", "checkout_start")); err != nil {
		t.Fatal(err)
	}
	if err := r.Create(testRecord("exec-0", "checkout_start")); err == nil {
		t.Error("an execution must be recorded only once")
	}

	rec, found, err := r.Get("exec-1")
	if err != nil || !found {
		t.Fatalf("record not found: %v", err)
	}
	if rec.InputContext.Get("cart_item.net_amount").String() != `"50.00"` {
		t.Errorf("invalid input context %s", rec.InputContext)
	}
	if len(rec.ActionsExecuted) != 1 || rec.ActionsExecuted[0].ActionsCompleted[1] != "stop" {
		t.Errorf("invalid executed actions %+v", rec.ActionsExecuted)
	}
	if len(rec.ErrorDetails) != 1 || rec.ErrorDetails[0].ActionIndex == nil || *rec.ErrorDetails[0].ActionIndex != 1 {
		t.Errorf("invalid error details %+v", rec.ErrorDetails)
	}

	records, err := r.GetByEntryPoint("calculate_vat_per_item", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
	if _, found, _ := r.Get("unknown"); found {
		t.Error("unknown execution found")
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

func TestAsyncRecorderOrder(t *testing.T) {
	repo := NewMemoryRepository()
	r := NewAsyncRecorder(repo, 4)
	for i := 0; i < 100; i++ {
		r.Record(testRecord(fmt.Sprintf("exec-%03d", i), "calculate_vat_per_item"))
	}
	r.Close()
	r.Close()

	records := repo.All()
	if len(records) != 100 {
		t.Fatalf("expected 100 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec.ExecutionID != fmt.Sprintf("exec-%03d", i) {
			t.Fatalf("position %d: got %s", i, rec.ExecutionID)
		}
	}
}

func TestAsyncRecorderConcurrentWriters(t *testing.T) {
	repo := NewMemoryRepository()
	r := NewAsyncRecorder(repo, 8)
	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				r.Record(testRecord(fmt.Sprintf("w%d-%d", w, i), "checkout_start"))
			}
		}(w)
	}
	wg.Wait()
	r.Close()
	if n := len(repo.All()); n != 200 {
		t.Errorf("expected 200 records, got %d", n)
	}
}

type failingRepository struct {
	MemoryRepository
}

func (r *failingRepository) Create(rec Record) error {
	return errors.New("connection refused")
}

func TestRecorderFailuresAreSwallowed(t *testing.T) {
	NewSyncRecorder(&failingRepository{}).Record(testRecord("a", "checkout_start"))
	NewSyncRecorder(nil).Record(testRecord("b", "checkout_start"))

	r := NewAsyncRecorder(&failingRepository{}, 1)
	r.Record(testRecord("c", "checkout_start"))
	r.Close()
}

func TestAsyncRecorderRecordAfterClose(t *testing.T) {
	logs := tests.ObserveLogs(t, zap.ErrorLevel)
	repo := NewMemoryRepository()
	r := NewAsyncRecorder(repo, 2)
	r.Record(testRecord("before", "place_order"))
	r.Close()

	defer func() {
		if p := recover(); p != nil {
			t.Fatalf("Record after Close panicked: %v", p)
		}
	}()
	r.Record(testRecord("after", "place_order"))

	records := repo.All()
	if len(records) != 1 || records[0].ExecutionID != "before" {
		t.Errorf("unexpected records %+v", records)
	}
	if n := logs.FilterField(zap.String("executionID", "after")).Len(); n != 1 {
		t.Errorf("the lost record must be logged, got %d entries", n)
	}
}
