package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"quizer-server/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultArchive persists final standings to Postgres. Write-only: live
// rooms are never reconstructed from it.
type ResultArchive struct {
	pool *pgxpool.Pool
}

func NewResultArchive(pool *pgxpool.Pool) *ResultArchive {
	return &ResultArchive{pool: pool}
}

func (a *ResultArchive) SaveResult(ctx context.Context, result domain.GameResult) error {
	standings, err := json.Marshal(result.Standings)
	if err != nil {
		return fmt.Errorf("marshal standings: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO game_results (room_code, quiz_id, quiz_title, finished_at, standings) VALUES ($1, $2, $3, $4, $5)`,
		result.RoomCode, result.QuizID, result.QuizTitle, result.FinishedAt, standings,
	)
	if err != nil {
		return fmt.Errorf("insert game result: %w", err)
	}
	return nil
}
