package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"projectmeasure/config"
	"projectmeasure/measurements"
	"projectmeasure/services"
	"projectmeasure/testhelpers"
)

type cliFixture struct {
	svc       *measurements.Service
	projectID string
	listID    string
	entryID   string
}

func newCLIFixture(t *testing.T) (*cliFixture, func(args ...string) (string, error)) {
	t.Helper()

	app := testhelpers.NewTestApp(t)
	svc := measurements.New(app, nil, nil, config.Config{
		DefaultVATRate:    services.DefaultVATRate,
		RollupConcurrency: 2,
	})
	project := testhelpers.CreateTestProject(t, app, "Tower C", "100000")
	list := testhelpers.CreateTestPriceList(t, app, "Civil 1403", "civil")
	entry := testhelpers.CreateTestEntry(t, app, list.Id, "160104", "Steel door", "each", "1250.00")

	run := func(args ...string) (string, error) {
		root := &cobra.Command{Use: "app", SilenceUsage: true, SilenceErrors: true}
		Register(root, app, svc)
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(args)
		err := root.Execute()
		return out.String(), err
	}
	return &cliFixture{svc: svc, projectID: project.Id, listID: list.Id, entryID: entry.Id}, run
}

func TestSummaryRefresh(t *testing.T) {
	f, run := newCLIFixture(t)
	ctx := context.Background()
	actor := measurements.Actor{ID: "cli", Role: "supervisor"}

	session, err := f.svc.CreateSession(ctx, f.projectID, measurements.CreateSessionInput{PriceListID: f.listID}, actor)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := f.svc.CreateItem(ctx, session.Id, measurements.ItemInput{
		PriceListEntryID: f.entryID,
		Count:            decimal.NewNullDecimal(decimal.NewFromInt(2)),
	}, actor); err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	out, err := run("summary", "refresh", f.projectID)
	if err != nil {
		t.Fatalf("summary refresh error = %v\n%s", err, out)
	}
	for _, want := range []string{"total amount:   2,500.00", "total with VAT: 2,725.00", "civil", "progress:       2.50%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryRefresh_Args(t *testing.T) {
	_, run := newCLIFixture(t)

	if _, err := run("summary", "refresh"); err == nil {
		t.Error("expected error without project id")
	}
	if _, err := run("summary", "refresh", "nosuchproject12"); err == nil {
		t.Error("expected error for unknown project")
	}
}

func TestRollupsRebuild(t *testing.T) {
	_, run := newCLIFixture(t)

	out, err := run("rollups", "rebuild")
	if err != nil {
		t.Fatalf("rollups rebuild error = %v", err)
	}
	if !strings.Contains(out, "rebuilt 1 entries") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestPriceListImport(t *testing.T) {
	f, run := newCLIFixture(t)

	dir := t.TempDir()
	good := filepath.Join(dir, "list.csv")
	if err := os.WriteFile(good, []byte("row_number,description,unit,price\n170101,Window,each,300\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := run("pricelist", "import", f.listID, good)
	if err != nil {
		t.Fatalf("import error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "created 1, updated 0, failed 0") {
		t.Errorf("unexpected output: %s", out)
	}

	bad := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(bad, []byte("row_number,description,unit\n,Nameless,each\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = run("pricelist", "import", f.listID, bad)
	if err == nil {
		t.Error("expected error for a file with row errors")
	}
	if !strings.Contains(out, "row 2: Row Number") {
		t.Errorf("row error not printed: %s", out)
	}

	if _, err := run("pricelist", "import", f.listID, filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected error for a missing file")
	}
}
