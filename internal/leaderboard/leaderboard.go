// Package leaderboard aggregates settled bounties into agent rankings with a
// direct SQL connection to the Supabase Postgres. Read-only and optional at
// boot; the endpoint answers 503 when DATABASE_URL is not configured.
package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// ErrBadWindow marks an unrecognized window parameter.
var ErrBadWindow = errors.New("unknown leaderboard window")

// Entry is one row of the leaderboard.
type Entry struct {
	Rank      int     `json:"rank"`
	AgentID   string  `json:"agent_id"`
	Name      string  `json:"name"`
	Missions  int     `json:"missions"`
	Earnings  float64 `json:"earnings"`
	AvgRating float64 `json:"avg_rating"`
}

// Service runs the aggregation query.
type Service struct {
	db     *sql.DB
	logger *log.Logger
}

// New opens the Postgres connection pool.
func New(databaseURL string) (*Service, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open leaderboard database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Service{
		db:     db,
		logger: log.New(log.Writer(), "[Leaderboard] ", log.LstdFlags),
	}, nil
}

// Close releases the connection pool.
func (s *Service) Close() error {
	return s.db.Close()
}

// windowInterval maps the API window parameter to a SQL interval.
func windowInterval(window string) (string, error) {
	switch window {
	case "", "all":
		return "", nil
	case "7d":
		return "7 days", nil
	case "30d":
		return "30 days", nil
	default:
		return "", fmt.Errorf("%w %q", ErrBadWindow, window)
	}
}

// Top returns the highest-earning agents over the given window, ranked by
// settled earnings with mission count and average star rating alongside.
func (s *Service) Top(ctx context.Context, window string, limit int) ([]Entry, error) {
	interval, err := windowInterval(window)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT a.agent_id, a.name,
		       COUNT(b.bounty_id) AS missions,
		       COALESCE(SUM(b.budget_max), 0) AS earnings,
		       ROUND(AVG(a.reputation_score) / 100.0 * 5, 1) AS avg_rating
		FROM agents a
		JOIN bounties b ON b.matched_agent_id = a.agent_id
		WHERE b.status = 'settled'`
	args := []interface{}{}

	if interval != "" {
		query += fmt.Sprintf(" AND b.created_at > now() - interval '%s'", interval)
	}
	query += `
		GROUP BY a.agent_id, a.name
		ORDER BY earnings DESC
		LIMIT $1`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("leaderboard query failed: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	rank := 1
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.AgentID, &e.Name, &e.Missions, &e.Earnings, &e.AvgRating); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		e.Rank = rank
		rank++
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
