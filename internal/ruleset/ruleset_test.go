package ruleset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rulekit/rulekit/internal/logging"
	"github.com/rulekit/rulekit/rulekit"
	"github.com/rulekit/rulekit/rulekit/storage/sqlite"
	_ "modernc.org/sqlite"
)

const sampleRuleset = `
rules:
  - name: senior-sales
    rule: "age > 30 AND department == 'Sales'"
  - name: well-paid
    rule: "salary >= 50000"
`

func newStore(t *testing.T) *rulekit.Store {
	t.Helper()
	opts := rulekit.DefaultStoreOptions()
	opts.Logger = logging.Discard()
	s, err := rulekit.Create(context.Background(), sqlite.New(filepath.Join(t.TempDir(), "rules.db")), opts)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestParse(t *testing.T) {
	set, err := Parse([]byte(sampleRuleset))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(set.Rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(set.Rules))
	}
	if set.Rules[0].Name != "senior-sales" || set.Rules[1].Rule != "salary >= 50000" {
		t.Errorf("unexpected set %+v", set)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":     "rules: [",
		"missing rule": "rules:\n  - name: empty\n",
		"blank rule":   "rules:\n  - name: blank\n    rule: '   '\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read ruleset") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestImport_SkipsExisting(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.CreateRule(ctx, "salary >= 50000", "already"); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	set, err := Parse([]byte(sampleRuleset + "  - name: dup\n    rule: \"age > 30 AND department == 'Sales'\"\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	res, err := Import(ctx, s, set)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(res.Created) != 1 || res.Created[0].Name != "senior-sales" {
		t.Errorf("Created = %+v", res.Created)
	}
	if res.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", res.Skipped)
	}

	// A second import is a no-op.
	res, err = Import(ctx, s, set)
	if err != nil {
		t.Fatalf("second Import: %v", err)
	}
	if len(res.Created) != 0 || res.Skipped != 3 {
		t.Errorf("second import = %+v", res)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestImport_InvalidRuleAbortsAll(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	set := &Set{Rules: []Entry{
		{Name: "ok", Rule: "age > 1"},
		{Name: "broken", Rule: "age >"},
	}}
	_, err := Import(ctx, s, set)
	if err == nil {
		t.Fatal("expected error")
	}
	if !rulekit.IsKind(err, rulekit.ErrSyntax) {
		t.Errorf("error kind = %q, want syntax: %v", rulekit.KindOf(err), err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error %q does not name the entry", err)
	}

	n, _ := s.Count(ctx)
	if n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}
}

func TestLoadAndImport(t *testing.T) {
	s := newStore(t)
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeFile(t, path, sampleRuleset)

	res, err := LoadAndImport(context.Background(), s, path)
	if err != nil {
		t.Fatalf("LoadAndImport: %v", err)
	}
	if len(res.Created) != 2 {
		t.Errorf("Created %d rules, want 2", len(res.Created))
	}
}

func TestDebouncer_CoalescesTriggers(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { calls.Add(1) })
	}

	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("callback ran %d times after Stop, want 0", got)
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeFile(t, path, "rules: []\n")

	w, err := NewWatcher(path, 20*time.Millisecond, logging.Discard())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	reloaded := make(chan struct{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func() error {
			reloaded <- struct{}{}
			return nil
		})
	}()

	// Unrelated files in the same directory are ignored.
	writeFile(t, filepath.Join(dir, "other.yaml"), "x: 1\n")
	writeFile(t, path, sampleRuleset)

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after writing ruleset")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}
