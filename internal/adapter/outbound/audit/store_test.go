package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/odisys/ces-gate/internal/domain/audit"
)

func sampleRecord(requestID string) audit.Record {
	return audit.Record{
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		RequestID: requestID,
		UserID:    "merchant-1",
		Input:     "quiero hacer campaña urgente",
		Topic:     "input_price",
		Domain:    "ECONOMIC",
		Impact:    "MEDIUM",
		Action:    "create_ad",
		DraftID:   "draft-1",
		Decision:  audit.DecisionBlock,
		RuleID:    "ECONOMIC_TRUTH",
		Reason:    "ECONOMIC_TRUTH: false scarcity claim, stock is not low",
		AuditHash: "00000000deadbeef",
	}
}

func TestFileStoreAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "trail.jsonl")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	ctx := context.Background()
	if err := store.Write(ctx, sampleRecord("req-1")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := store.Write(ctx, sampleRecord("req-2")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trail: %v", err)
	}
	defer f.Close()

	var records []audit.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec audit.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		records = append(records, rec)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(records))
	}
	if records[0].RequestID != "req-1" || records[1].RequestID != "req-2" {
		t.Errorf("records out of order: %+v", records)
	}
	if records[0].Decision != audit.DecisionBlock || records[0].RuleID != "ECONOMIC_TRUTH" {
		t.Errorf("record fields lost in round trip: %+v", records[0])
	}
}

func TestFileStoreReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trail.jsonl")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		store, err := NewFileStore(path)
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		if err := store.Write(ctx, sampleRecord("req")); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read trail: %v", err)
	}
	if got := bytes.Count(data, []byte("\n")); got != 2 {
		t.Fatalf("reopen must append, expected 2 lines, got %d", got)
	}
}

func TestStreamStoreConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	store := NewStreamStore(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Write(context.Background(), sampleRecord("req")); err != nil {
				t.Errorf("write failed: %v", err)
			}
		}()
	}
	wg.Wait()
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 16 {
		t.Fatalf("expected 16 lines, got %d", len(lines))
	}
	for _, line := range lines {
		var rec audit.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			t.Fatalf("interleaved write produced invalid JSON: %v", err)
		}
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	want := sampleRecord("req-1")
	if err := store.Write(ctx, want); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := store.Write(ctx, sampleRecord("req-2")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var (
		count            int
		decision, ruleID string
	)
	row := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}

	row = store.db.QueryRowContext(ctx,
		"SELECT decision, rule_id FROM audit_records WHERE request_id = ?", "req-1")
	if err := row.Scan(&decision, &ruleID); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if decision != want.Decision || ruleID != want.RuleID {
		t.Errorf("got %s/%s, want %s/%s", decision, ruleID, want.Decision, want.RuleID)
	}
}

func TestSQLiteStoreSchemaIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	for i := 0; i < 2; i++ {
		store, err := NewSQLiteStore(path)
		if err != nil {
			t.Fatalf("open %d failed: %v", i, err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("close %d failed: %v", i, err)
		}
	}
}
