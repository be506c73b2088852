package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mfg-agent/mfgagent/models"
)

// TestStoreAgainstPostgres exercises the full round trip against a real
// database. Skipped unless MFGAGENT_INTEGRATION=1.
func TestStoreAgainstPostgres(t *testing.T) {
	if os.Getenv("MFGAGENT_INTEGRATION") != "1" {
		t.Skip("set MFGAGENT_INTEGRATION=1 to run container-backed tests")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "mfgagent",
			"POSTGRES_PASSWORD": "mfgagent",
			"POSTGRES_DB":       "mfgagent",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(1).WithStartupTimeout(60 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer func() { _ = pg.Terminate(ctx) }()

	host, err := pg.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://mfgagent:mfgagent@%s:%s/mfgagent?sslmode=disable", host, port.Port())

	if err := Migrate(findMigrationsDir(t), dsn, "up", 0); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st, err := NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer st.DB.Close()

	if err := st.CreateUser(ctx, "alice@example.com", "hash"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	userID, _, err := st.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := models.ReportRecord{
		SessionID: "MFG-int-1", UserID: userID, Query: "find pumps in India",
		Product: "pumps", Location: "India", ReportText: "# Report",
		SuppliersFound: 1, SourcesUsed: []string{"indiamart"}, ElapsedSeconds: 3.2, CreatedAt: now,
	}
	if err := st.SaveReport(ctx, rec); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	sup := models.SupplierRecord{
		ID: "11111111-1111-1111-1111-111111111111", SessionID: rec.SessionID, UserID: userID,
		Query: rec.Query, Name: "Acme Pumps", Location: "Pune, India",
		Products: []string{"pumps"}, Source: "indiamart", CreatedAt: now,
	}
	if err := st.SaveSuppliers(ctx, []models.SupplierRecord{sup}); err != nil {
		t.Fatalf("SaveSuppliers: %v", err)
	}
	if err := st.AppendHistory(ctx, models.HistoryEntry{
		UserID: userID, Query: rec.Query, SessionID: rec.SessionID, CreatedAt: now,
	}); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	got, err := st.GetReport(ctx, rec.SessionID, userID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.Product != "pumps" || len(got.SourcesUsed) != 1 {
		t.Fatalf("round trip mangled report: %+v", got)
	}
	sups, err := st.ListSuppliersBySession(ctx, rec.SessionID, userID)
	if err != nil || len(sups) != 1 || sups[0].Name != "Acme Pumps" {
		t.Fatalf("suppliers round trip: %v %+v", err, sups)
	}
	stats, err := st.Stats(ctx, userID)
	if err != nil || stats.Reports != 1 || stats.Suppliers != 1 || stats.Queries != 1 {
		t.Fatalf("stats: %v %+v", err, stats)
	}

	if err := st.DeleteReport(ctx, rec.SessionID, userID); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}
	if _, err := st.GetReport(ctx, rec.SessionID, userID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("report should be gone, got %v", err)
	}
	if sups, _ := st.ListSuppliersBySession(ctx, rec.SessionID, userID); len(sups) != 0 {
		t.Fatalf("suppliers should cascade on delete, got %+v", sups)
	}
}

func findMigrationsDir(t *testing.T) string {
	t.Helper()
	cwd, _ := os.Getwd()
	for i := 0; i < 6; i++ {
		candidate := filepath.Join(cwd, "migrations")
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return "file://" + candidate
		}
		cwd = filepath.Dir(cwd)
	}
	t.Fatalf("could not locate migrations directory from test cwd")
	return ""
}
