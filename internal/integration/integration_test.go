package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"quizer-server/internal/domain"
	"quizer-server/internal/game"
	"quizer-server/internal/infra/memory"
	"quizer-server/internal/infra/postgres"
	pgmigrations "quizer-server/internal/infra/postgres/migrations"

	"github.com/jackc/pgx/v4/pgxpool"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// nullSender drops everything; message delivery is covered elsewhere.
type nullSender struct{}

func (nullSender) Send(string, game.Envelope) {}

func TestGameResultArchivedEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	dsn, cleanup := startPostgres(t, ctx)
	defer cleanup()

	runMigrations(t, ctx, dsn)

	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	archive := postgres.NewResultArchive(pool)
	engine := game.NewEngine(memory.NewRoomRegistry(), nullSender{}, archive, game.Options{})

	quiz := domain.Quiz{
		ID:    "quiz-abc123",
		Title: "Capitals",
		Questions: []domain.Question{
			{
				Text:          "Capital of France?",
				Type:          domain.QuestionMultiple,
				Answers:       []string{"Paris", "Lyon"},
				CorrectAnswer: 0,
				Points:        100,
			},
		},
	}
	if err := engine.CreateRoom("host", quiz.ID, quiz); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := engine.JoinRoom("p1", "ABC123", "Alice", "🦊"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := engine.StartGame("host", "ABC123"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := engine.SubmitAnswer("p1", "ABC123", 0, 1.0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := engine.NextQuestion("host", "ABC123"); err != nil {
		t.Fatalf("next: %v", err)
	}

	// The archive write is fire-and-forget; poll for the row.
	deadline := time.Now().Add(10 * time.Second)
	for {
		var roomCode, quizID string
		var standings []byte
		err := pool.QueryRow(ctx,
			`SELECT room_code, quiz_id, standings FROM game_results LIMIT 1`,
		).Scan(&roomCode, &quizID, &standings)
		if err == nil {
			if roomCode != "ABC123" || quizID != "quiz-abc123" {
				t.Fatalf("unexpected archived row: %s %s", roomCode, quizID)
			}
			var rows []domain.Standing
			if err := json.Unmarshal(standings, &rows); err != nil {
				t.Fatalf("unmarshal standings: %v", err)
			}
			if len(rows) != 1 || rows[0].Name != "Alice" || rows[0].Score != 150 {
				t.Fatalf("unexpected standings: %+v", rows)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("archived row never appeared: %v", err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quizer", "POSTGRES_PASSWORD": "quizerpass", "POSTGRES_DB": "quizerdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quizer:quizerpass@%s:%s/quizerdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
