// ./internal/state/scores_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/poolpulse/poolpulse/internal/types"
	"github.com/rs/zerolog/log"
)

// ScoreboardSummary represents high-level statistics over the latest scores.
type ScoreboardSummary struct {
	PoolCount      int     `json:"pool_count"`
	SuspectCount   int     `json:"suspect_count"`
	AverageTotal   float64 `json:"average_total"`
	LastPassID     string  `json:"last_pass_id"`
	LastComputedAt string  `json:"last_computed_at"`
}

// SavePoolScore saves one pool's composite score from a scoring pass.
func SavePoolScore(score types.Score, passNumber int, weightsID *int64) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	// Marshal all JSONB fields
	componentsJSON, err := json.Marshal(score.Components)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal components: %w", err)
	}

	penaltiesJSON, err := json.Marshal(score.Penalties)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal penalties: %w", err)
	}

	volatilityJSON, err := json.Marshal(score.Volatility)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal volatility: %w", err)
	}

	feeAprJSON, err := json.Marshal(score.FeeAPR)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal fee_apr: %w", err)
	}

	query := `
		INSERT INTO pool_scores (
			pass_id, pass_number, pool_id, computed_at, weights_id,
			total_score, health_score, return_score, risk_penalty,
			recommended_mode, suspect, suspect_reasons,
			components, penalties, volatility, fee_apr
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING score_id;
	`

	var scoreID int64
	err = DB.QueryRow(
		query,
		score.PassID, passNumber, string(score.PoolID), score.ComputedAt, weightsID,
		score.Total, score.HealthScore, score.ReturnScore, score.RiskPenalty,
		string(score.RecommendedMode), score.Suspect, pq.Array(score.SuspectReasons),
		componentsJSON, penaltiesJSON, volatilityJSON, feeAprJSON,
	).Scan(&scoreID)

	if err != nil {
		return 0, fmt.Errorf("failed to save pool score: %w", err)
	}

	log.Debug().
		Int64("score_id", scoreID).
		Str("pool_id", string(score.PoolID)).
		Float64("total", score.Total).
		Msg("Pool score saved to database")

	return scoreID, nil
}

// GetLatestScores returns the most recent score per pool, best total first.
func GetLatestScores() ([]types.Score, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT pool_id, pass_id, computed_at,
			total_score, health_score, return_score, risk_penalty,
			recommended_mode, suspect, suspect_reasons,
			components, penalties, volatility, fee_apr
		FROM (
			SELECT DISTINCT ON (pool_id) *
			FROM pool_scores
			ORDER BY pool_id, computed_at DESC
		) latest
		ORDER BY total_score DESC, pool_id ASC;
	`

	rows, err := DB.Query(query)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query latest scores")
		return nil, fmt.Errorf("failed to query latest scores: %w", err)
	}
	defer rows.Close()

	scores, err := scanScoreRows(rows)
	if err != nil {
		return nil, err
	}

	log.Debug().Int("count", len(scores)).Msg("Retrieved latest scores")
	return scores, nil
}

// GetLatestPoolScore returns the most recent score for one pool, or nil when
// the pool has never been scored.
func GetLatestPoolScore(poolID types.PoolID) (*types.Score, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT pool_id, pass_id, computed_at,
			total_score, health_score, return_score, risk_penalty,
			recommended_mode, suspect, suspect_reasons,
			components, penalties, volatility, fee_apr
		FROM pool_scores
		WHERE pool_id = $1
		ORDER BY computed_at DESC
		LIMIT 1;
	`

	rows, err := DB.Query(query, string(poolID))
	if err != nil {
		return nil, fmt.Errorf("failed to query score for pool %s: %w", poolID, err)
	}
	defer rows.Close()

	scores, err := scanScoreRows(rows)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}
	return &scores[0], nil
}

// GetPoolScoreHistory returns recent scores for one pool, newest first.
func GetPoolScoreHistory(poolID types.PoolID, limit int) ([]types.Score, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := `
		SELECT pool_id, pass_id, computed_at,
			total_score, health_score, return_score, risk_penalty,
			recommended_mode, suspect, suspect_reasons,
			components, penalties, volatility, fee_apr
		FROM pool_scores
		WHERE pool_id = $1
		ORDER BY computed_at DESC
		LIMIT $2;
	`

	rows, err := DB.Query(query, string(poolID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query score history for pool %s: %w", poolID, err)
	}
	defer rows.Close()

	scores, err := scanScoreRows(rows)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("pool_id", string(poolID)).
		Int("count", len(scores)).
		Msg("Retrieved pool score history")
	return scores, nil
}

// GetScoreboardSummary aggregates the latest scores into headline numbers.
func GetScoreboardSummary() (ScoreboardSummary, error) {
	if DB == nil {
		return ScoreboardSummary{}, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE suspect),
			COALESCE(AVG(total_score), 0),
			COALESCE(MAX(pass_id), ''),
			COALESCE(MAX(computed_at)::TEXT, '')
		FROM (
			SELECT DISTINCT ON (pool_id) *
			FROM pool_scores
			ORDER BY pool_id, computed_at DESC
		) latest;
	`

	var summary ScoreboardSummary
	err := DB.QueryRow(query).Scan(
		&summary.PoolCount,
		&summary.SuspectCount,
		&summary.AverageTotal,
		&summary.LastPassID,
		&summary.LastComputedAt,
	)
	if err != nil {
		return ScoreboardSummary{}, fmt.Errorf("failed to aggregate scoreboard summary: %w", err)
	}

	return summary, nil
}

// scanScoreRows scans and unmarshals score rows, skipping rows that fail
// rather than dropping the whole result.
func scanScoreRows(rows *sql.Rows) ([]types.Score, error) {
	var scores []types.Score

	for rows.Next() {
		var score types.Score
		var poolID, mode string
		var componentsJSON, penaltiesJSON, volatilityJSON, feeAprJSON []byte

		err := rows.Scan(
			&poolID, &score.PassID, &score.ComputedAt,
			&score.Total, &score.HealthScore, &score.ReturnScore, &score.RiskPenalty,
			&mode, &score.Suspect, pq.Array(&score.SuspectReasons),
			&componentsJSON, &penaltiesJSON, &volatilityJSON, &feeAprJSON,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan score row")
			continue // Skip this row and continue with others
		}

		score.PoolID = types.PoolID(poolID)
		score.RecommendedMode = types.RiskMode(mode)

		if err := unmarshalScoreFields(&score, componentsJSON, penaltiesJSON, volatilityJSON, feeAprJSON); err != nil {
			log.Error().Err(err).Str("pool_id", poolID).Msg("Failed to unmarshal JSON fields for score")
			continue // Skip this row and continue with others
		}

		scores = append(scores, score)
	}

	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("Error occurred during row iteration")
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return scores, nil
}

// unmarshalScoreFields unmarshals the JSONB columns of a score row.
func unmarshalScoreFields(score *types.Score, componentsJSON, penaltiesJSON, volatilityJSON, feeAprJSON []byte) error {
	if len(componentsJSON) > 0 {
		if err := json.Unmarshal(componentsJSON, &score.Components); err != nil {
			return fmt.Errorf("failed to unmarshal components: %w", err)
		}
	}

	if len(penaltiesJSON) > 0 {
		if err := json.Unmarshal(penaltiesJSON, &score.Penalties); err != nil {
			return fmt.Errorf("failed to unmarshal penalties: %w", err)
		}
	}

	if len(volatilityJSON) > 0 {
		if err := json.Unmarshal(volatilityJSON, &score.Volatility); err != nil {
			return fmt.Errorf("failed to unmarshal volatility: %w", err)
		}
	}

	if len(feeAprJSON) > 0 {
		if err := json.Unmarshal(feeAprJSON, &score.FeeAPR); err != nil {
			return fmt.Errorf("failed to unmarshal fee_apr: %w", err)
		}
	}

	return nil
}
