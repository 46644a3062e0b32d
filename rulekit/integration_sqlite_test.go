package rulekit_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rulekit/rulekit/rulekit"
	"github.com/rulekit/rulekit/rulekit/rule"
	"github.com/rulekit/rulekit/rulekit/storage"
	"github.com/rulekit/rulekit/rulekit/storage/sqlite"
	_ "modernc.org/sqlite"
)

func monotonicNow(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("rule-%03d", n)
	}
}

func newStore(t *testing.T) (*rulekit.Store, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "rules.db")
	opts := rulekit.DefaultStoreOptions()
	opts.Now = monotonicNow(time.Unix(1700000000, 0))
	opts.NewID = sequentialIDs()

	s, err := rulekit.Create(context.Background(), sqlite.New(dbPath), opts)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, dbPath
}

func TestCreateGetEvaluate_SQLite(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	r, err := s.CreateRule(ctx, "age > 30 AND department = 'Sales'", "senior sales")
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	if r.ID != "rule-001" || r.Name != "senior sales" {
		t.Errorf("unexpected rule %+v", r)
	}

	got, err := s.GetRule(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if got.RuleString != r.RuleString || !rule.Equal(got.AST, r.AST) {
		t.Errorf("stored rule differs: %+v", got)
	}
	if !got.CreatedAt.Equal(r.CreatedAt) {
		t.Errorf("created_at: expected %v, got %v", r.CreatedAt, got.CreatedAt)
	}

	ok, err := s.EvaluateRule(ctx, r.ID, rule.Record{"age": 35, "department": "Sales"})
	if err != nil {
		t.Fatalf("EvaluateRule: %v", err)
	}
	if !ok {
		t.Errorf("expected true")
	}

	ok, err = s.EvaluateRule(ctx, r.ID, rule.Record{"age": 25, "department": "Sales"})
	if err != nil || ok {
		t.Errorf("expected false, nil; got %v, %v", ok, err)
	}
}

func TestCreateRuleSyntaxError_SQLite(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, err := s.CreateRule(ctx, "age > ", "")
	if !rulekit.IsKind(err, rulekit.ErrSyntax) {
		t.Fatalf("expected syntax error, got %v", err)
	}
	var perr *rule.ParseError
	if !errors.As(err, &perr) {
		t.Errorf("expected *rule.ParseError in chain, got %v", err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected nothing stored, got %d", n)
	}
}

func TestEvaluateErrors_SQLite(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	r, err := s.CreateRule(ctx, "salary > 1000", "")
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	_, err = s.EvaluateRule(ctx, r.ID, rule.Record{"age": 3})
	if !rulekit.IsKind(err, rulekit.ErrEval) {
		t.Errorf("expected eval error, got %v", err)
	}
	var missing *rule.MissingAttributeError
	if !errors.As(err, &missing) || missing.Name != "salary" {
		t.Errorf("expected missing salary, got %v", err)
	}

	_, err = s.EvaluateRule(ctx, "nope", rule.Record{})
	if !rulekit.IsNotFound(err) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestCombineRules_SQLite(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	r, err := s.CombineRules(ctx, []string{
		"age > 30 AND department = 'Sales'",
		"salary > 50000 OR experience > 5",
		"age > 30 AND department = 'Sales'",
	}, "combined")
	if err != nil {
		t.Fatalf("CombineRules: %v", err)
	}
	want := "age > 30 AND department == 'Sales' AND (salary > 50000 OR experience > 5)"
	if r.RuleString != want {
		t.Errorf("expected %q, got %q", want, r.RuleString)
	}

	reparsed, err := rule.Parse(r.RuleString)
	if err != nil {
		t.Fatalf("stored text does not parse: %v", err)
	}
	if !rule.Equal(reparsed, r.AST) {
		t.Errorf("stored text and tree disagree")
	}

	ok, err := s.EvaluateRule(ctx, r.ID, rule.Record{"age": 40, "department": "Sales", "salary": 10, "experience": 9})
	if err != nil || !ok {
		t.Errorf("expected true, nil; got %v, %v", ok, err)
	}

	_, err = s.CombineRules(ctx, nil, "")
	if !rulekit.IsKind(err, rulekit.ErrCombine) || !errors.Is(err, rule.ErrCombineEmpty) {
		t.Errorf("expected combine empty, got %v", err)
	}

	_, err = s.CombineRules(ctx, []string{"a = 1", "b = "}, "")
	if !rulekit.IsKind(err, rulekit.ErrSyntax) {
		t.Errorf("expected syntax error, got %v", err)
	}
}

func TestCombineRulesWithOperator_SQLite(t *testing.T) {
	s, _ := newStore(t)
	r, err := s.CombineRulesWith(context.Background(), []string{"a = 1", "b = 2"}, "", rule.OpOr)
	if err != nil {
		t.Fatalf("CombineRulesWith: %v", err)
	}
	if r.RuleString != "a == 1 OR b == 2" {
		t.Errorf("unexpected rule string %q", r.RuleString)
	}
}

func TestCombineStored_SQLite(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	a, err := s.CreateRule(ctx, "age < 25 OR department = 'Marketing'", "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.CreateRule(ctx, "score >= 9.5", "")
	if err != nil {
		t.Fatal(err)
	}

	c, err := s.CombineStored(ctx, []string{a.ID, b.ID}, "both")
	if err != nil {
		t.Fatalf("CombineStored: %v", err)
	}
	if len(c.Sources) != 2 || c.Sources[0] != a.ID || c.Sources[1] != b.ID {
		t.Errorf("unexpected sources %v", c.Sources)
	}
	if c.AST.(*rule.Operator).Op != rule.OpOr {
		t.Errorf("expected OR majority, got %s", rule.Format(c.AST))
	}

	got, err := s.GetRule(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if len(got.Sources) != 2 {
		t.Errorf("sources not persisted: %v", got.Sources)
	}

	// combined rules keep working after their sources are gone
	if _, err := s.DeleteRule(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	ok, err := s.EvaluateRule(ctx, c.ID, rule.Record{"age": 20, "department": "x", "score": 1})
	if err != nil || !ok {
		t.Errorf("expected true, nil; got %v, %v", ok, err)
	}

	_, err = s.CombineStored(ctx, []string{b.ID, a.ID}, "")
	if !rulekit.IsNotFound(err) {
		t.Errorf("expected not_found for deleted source, got %v", err)
	}
}

func TestListPagination_SQLite(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		name := "plain"
		if i%2 == 0 {
			name = "vip"
		}
		if _, err := s.CreateRule(ctx, fmt.Sprintf("level > %d", i), name); err != nil {
			t.Fatal(err)
		}
	}

	var seen []string
	after := ""
	for pages := 0; ; pages++ {
		if pages > 10 {
			t.Fatal("pagination does not terminate")
		}
		page, err := s.ListRules(ctx, rulekit.ListOptions{Limit: 3, After: after})
		if err != nil {
			t.Fatalf("ListRules: %v", err)
		}
		for _, r := range page.Rules {
			seen = append(seen, r.ID)
		}
		if !page.HasMore {
			if page.NextCursor != "" {
				t.Errorf("last page should have no cursor")
			}
			break
		}
		after = page.NextCursor
	}
	if len(seen) != 7 || seen[0] != "rule-001" || seen[6] != "rule-007" {
		t.Errorf("unexpected order %v", seen)
	}

	page, err := s.ListRules(ctx, rulekit.ListOptions{Name: "vip", Limit: 10})
	if err != nil {
		t.Fatalf("ListRules vip: %v", err)
	}
	if len(page.Rules) != 4 || page.HasMore {
		t.Errorf("expected 4 vip rules, got %d (more=%v)", len(page.Rules), page.HasMore)
	}

	first, err := s.ListRules(ctx, rulekit.ListOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.ListRules(ctx, rulekit.ListOptions{Name: "vip", After: first.NextCursor})
	if !rulekit.IsKind(err, rulekit.ErrCursor) {
		t.Errorf("expected cursor error for mismatched filter, got %v", err)
	}

	_, err = s.ListRules(ctx, rulekit.ListOptions{Limit: -1})
	if !rulekit.IsKind(err, rulekit.ErrInvalid) {
		t.Errorf("expected invalid limit, got %v", err)
	}
}

func TestDeleteAndFind_SQLite(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	r, err := s.CreateRule(ctx, "a = 1", "")
	if err != nil {
		t.Fatal(err)
	}
	found, ok, err := s.FindByRuleString(ctx, "a = 1")
	if err != nil || !ok || found.ID != r.ID {
		t.Fatalf("FindByRuleString: %+v %v %v", found, ok, err)
	}

	deleted, err := s.DeleteRule(ctx, r.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteRule: %v %v", deleted, err)
	}
	deleted, err = s.DeleteRule(ctx, r.ID)
	if err != nil || deleted {
		t.Errorf("second delete: expected false, nil; got %v, %v", deleted, err)
	}
	if _, err := s.GetRule(ctx, r.ID); !rulekit.IsNotFound(err) {
		t.Errorf("expected not_found, got %v", err)
	}
	if _, ok, _ := s.FindByRuleString(ctx, "a = 1"); ok {
		t.Errorf("deleted rule still found")
	}
}

func TestBatch_SQLite(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	existing, err := s.CreateRule(ctx, "x = 1", "")
	if err != nil {
		t.Fatal(err)
	}

	b := rulekit.NewBatch()
	if err := b.Create("y = 2", "y"); err != nil {
		t.Fatal(err)
	}
	if err := b.Create("z = 3", "z"); err != nil {
		t.Fatal(err)
	}
	if err := b.Delete(existing.ID); err != nil {
		t.Fatal(err)
	}
	if err := b.Delete("missing"); err != nil {
		t.Fatal(err)
	}
	if err := b.Create("broken =", ""); !rulekit.IsKind(err, rulekit.ErrSyntax) {
		t.Errorf("expected syntax error when queueing, got %v", err)
	}
	if b.Len() != 4 {
		t.Errorf("expected 4 queued ops, got %d", b.Len())
	}

	res, err := b.Execute(ctx, s)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Created) != 2 || res.Deleted != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	n, _ := s.Count(ctx)
	if n != 2 {
		t.Errorf("expected 2 rules, got %d", n)
	}
}

func TestReopen_SQLite(t *testing.T) {
	s, dbPath := newStore(t)
	ctx := context.Background()

	r, err := s.CreateRule(ctx, "(a > 1 OR b < 2) AND c != 'x'", "keep")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := rulekit.Open(ctx, sqlite.New(dbPath), rulekit.DefaultStoreOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s2.Close()

	got, err := s2.GetRule(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if !rule.Equal(got.AST, r.AST) || got.Name != "keep" {
		t.Errorf("unexpected rule after reopen %+v", got)
	}
	if err := s2.Optimize(ctx); err != nil {
		t.Errorf("Optimize: %v", err)
	}
}

func TestOpenRejectsForeignDatabase_SQLite(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "other.db")

	a := sqlite.New(dbPath)
	db, err := a.Connect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT)"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	_, err = rulekit.Open(ctx, a, rulekit.DefaultStoreOptions())
	if !errors.Is(err, storage.ErrNotRuleStore) {
		t.Errorf("expected ErrNotRuleStore, got %v", err)
	}
}

// longRule returns an OR chain of terms comparisons, about 14 bytes each.
func longRule(prefix string, terms int) string {
	parts := make([]string, terms)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d == %d", prefix, i, i)
	}
	return strings.Join(parts, " OR ")
}

// checkLongRules stores, finds and combines rules well past 3kB.
func checkLongRules(t *testing.T, s *rulekit.Store) {
	t.Helper()
	ctx := context.Background()

	a, b := longRule("a", 300), longRule("b", 300)
	if len(a) < 3*1024 {
		t.Fatalf("test rule too short: %d bytes", len(a))
	}

	ra, err := s.CreateRule(ctx, a, "long a")
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	if _, err := s.CreateRule(ctx, b, "long b"); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	found, ok, err := s.FindByRuleString(ctx, a)
	if err != nil || !ok || found.ID != ra.ID {
		t.Fatalf("FindByRuleString: %v %v %v", found.ID, ok, err)
	}
	if _, ok, err := s.FindByRuleString(ctx, a+" OR z == 1"); err != nil || ok {
		t.Errorf("unexpected match for a different long rule: %v %v", ok, err)
	}

	combined, err := s.CombineRules(ctx, []string{a, b}, "long combined")
	if err != nil {
		t.Fatalf("CombineRules: %v", err)
	}
	if len(combined.RuleString) <= len(a)+len(b) {
		t.Errorf("combined rule text unexpectedly short: %d bytes", len(combined.RuleString))
	}
	got, err := s.EvaluateRule(ctx, combined.ID, rule.Record{"a0": 0})
	if err != nil || !got {
		t.Errorf("EvaluateRule: %v %v", got, err)
	}
}

func TestLongRules_SQLite(t *testing.T) {
	s, _ := newStore(t)
	checkLongRules(t, s)
}

func TestOpenStore_MissingTables_SQLite(t *testing.T) {
	ctx := context.Background()
	a := sqlite.New(filepath.Join(t.TempDir(), "empty.db"))
	db, err := a.Connect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := a.OpenStore(ctx, db); !errors.Is(err, storage.ErrNotRuleStore) {
		t.Errorf("expected ErrNotRuleStore, got %v", err)
	}
}

func TestOpenStore_TransientErrorKeepsCause_SQLite(t *testing.T) {
	ctx := context.Background()
	_, dbPath := newStore(t)

	a := sqlite.New(dbPath)
	db, err := a.Connect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = a.OpenStore(cancelled, db)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, storage.ErrNotRuleStore) {
		t.Errorf("cancelled lookup reported as foreign database: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}

	if _, err := a.OpenStore(ctx, db); err != nil {
		t.Errorf("OpenStore: %v", err)
	}
}

func TestRuleJSON_ComparatorsNotEscaped(t *testing.T) {
	s, _ := newStore(t)
	r, err := s.CreateRule(context.Background(), "age >= 18 AND score < 5", "")
	if err != nil {
		t.Fatal(err)
	}
	data, err := r.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{
		`"rule_string":"age >= 18 AND score < 5"`,
		`"comparator":">="`,
		`"comparator":"<"`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("missing %s in %s", want, data)
		}
	}
	if strings.HasSuffix(string(data), "\n") {
		t.Errorf("trailing newline in %q", data)
	}
}

func TestRuleJSON(t *testing.T) {
	s, _ := newStore(t)
	r, err := s.CreateRule(context.Background(), "age >= 18", "adult")
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back rulekit.Rule
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ID != r.ID || back.RuleString != r.RuleString || !rule.Equal(back.AST, r.AST) {
		t.Errorf("round trip mismatch: %s", data)
	}
}
