package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"probchart/config"
	"probchart/internal/updater"
	"probchart/pkg/storage/postgres"
)

func testClient(t *testing.T) *postgres.PostgresClient {
	t.Helper()
	dsn := os.Getenv("PROBCHART_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("PROBCHART_TEST_PG_DSN not set")
	}
	client, err := postgres.NewClient(dsn)
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	if err := client.AutoMigratePointRecord(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return client
}

// go test -v --run ^TestToPointRecords$
func TestToPointRecords(t *testing.T) {
	recs := postgres.ToPointRecords("401584893", "espn", []updater.TimePoint{
		{Time: 1700000000, Value: 51.5},
		{Time: 1700000005, Value: 52},
	})
	if len(recs) != 2 {
		t.Fatalf("len = %d", len(recs))
	}
	if recs[0].GameID != "401584893" || recs[0].Source != "espn" {
		t.Errorf("unexpected record: %+v", recs[0])
	}
	if !recs[1].Time.Equal(time.Unix(1700000005, 0)) || recs[1].Time.Location() != time.UTC {
		t.Errorf("time = %v", recs[1].Time)
	}
}

// go test -v --run ^TestPostgresInvalidDSN$
func TestPostgresInvalidDSN(t *testing.T) {
	invalidDSN := "host=invalid port=5432 user=fail password=fail dbname=fail sslmode=disable connect_timeout=1"

	_, err := postgres.NewClient(invalidDSN)
	if err == nil {
		t.Fatal("expected error for invalid DSN, got nil")
	}
}

// go test -v --run ^TestCreateDatabaseUnreachable$
func TestCreateDatabaseUnreachable(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "postgres",
		Password: "x",
		DBName:   "probchart_test",
		SSLMode:  "disable",
	}
	if err := postgres.CreateDatabase(cfg, "dev"); err == nil {
		t.Fatal("expected error for unreachable server")
	}
}

// go test -v --run ^TestPointCRUD$
func TestPointCRUD(t *testing.T) {
	client := testClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if !client.IsHealthy(ctx) {
		t.Fatal("expected healthy DB connection")
	}

	gameID := fmt.Sprintf("test-%d", time.Now().UnixNano())
	defer client.DeleteGamePoints(context.Background(), gameID)

	pts := []updater.TimePoint{{Time: 100, Value: 50}, {Time: 101, Value: 51}}
	n, err := client.InsertPoints(ctx, postgres.ToPointRecords(gameID, "espn", pts))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}

	// duplicates are skipped
	n, err = client.InsertPoints(ctx, postgres.ToPointRecords(gameID, "espn", pts[1:]))
	if err != nil {
		t.Fatalf("duplicate insert failed: %v", err)
	}
	if n != 0 {
		t.Errorf("inserted duplicate = %d, want 0", n)
	}

	got, err := client.ListPoints(ctx, gameID, "espn")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 || got[0] != pts[0] || got[1] != pts[1] {
		t.Errorf("points = %v, want %v", got, pts)
	}
}

// go test -v --run ^TestRecorderWithUpdater$
func TestRecorderWithUpdater(t *testing.T) {
	client := testClient(t)
	gameID := fmt.Sprintf("test-%d", time.Now().UnixNano())
	defer client.DeleteGamePoints(context.Background(), gameID)

	rec := postgres.NewRecorder(client, gameID, nil)
	u := updater.New(rec, updater.WithThrottle(0))

	u.Load("espn", []updater.TimePoint{{Time: 10, Value: 40}})
	u.Enqueue("espn", []updater.RawPoint{updater.NewRawPoint(11, 41), updater.NewRawPoint(10, 99)})
	u.Flush()
	u.Close()
	if err := rec.Close(); err != nil {
		t.Fatalf("recorder close: %v", err)
	}

	got, err := client.ListPoints(context.Background(), gameID, "espn")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	want := []updater.TimePoint{{Time: 10, Value: 40}, {Time: 11, Value: 41}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("points = %v, want %v", got, want)
	}
}
