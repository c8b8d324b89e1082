// ./internal/state/weights_store.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/poolpulse/poolpulse/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveScoreWeights saves a new version of the scoring weights.
func SaveScoreWeights(weights types.ScoreWeights, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE score_weights SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active weights for %s: %w", configName, err)
		}
	}

	stmt := `
        INSERT INTO score_weights (
            version, config_name, is_active, activated_at, created_at,
            health_weight, return_weight, risk_weight_cap,
            min_tvl_usd, min_volume_24h_usd,
            suspect_apr_ceiling, suspect_volume_tvl_multiple,
            z_score_defensive, z_score_normal, z_score_aggressive,
            active_fraction_defensive, active_fraction_normal, active_fraction_aggressive,
            stable_width_cap,
            stable_volatility_threshold, default_volatility_threshold
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8,
            $9, $10,
            $11, $12,
            $13, $14, $15,
            $16, $17, $18,
            $19,
            $20, $21
        ) RETURNING weights_id;`

	var weightsID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		version, configName, makeActive, currentTime, currentTime,
		weights.HealthWeight, weights.ReturnWeight, weights.RiskWeightCap,
		weights.MinTVLUSD, weights.MinVolume24hUSD,
		weights.SuspectAPRCeiling, weights.SuspectVolumeTvlMultiple,
		weights.ZScoreDefensive, weights.ZScoreNormal, weights.ZScoreAggressive,
		weights.ActiveFractionDefensive, weights.ActiveFractionNormal, weights.ActiveFractionAggressive,
		weights.StableWidthCap,
		weights.StableVolatilityThreshold, weights.DefaultVolatilityThreshold,
	).Scan(&weightsID)

	if err != nil {
		return 0, fmt.Errorf("failed to insert score weights: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("weights_id", weightsID).
		Bool("active", makeActive).
		Msg("Saved score weights")
	return weightsID, nil
}

// LoadActiveScoreWeights loads the currently active scoring weights.
func LoadActiveScoreWeights(configName string) (*types.ScoreWeights, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT
            health_weight, return_weight, risk_weight_cap,
            min_tvl_usd, min_volume_24h_usd,
            suspect_apr_ceiling, suspect_volume_tvl_multiple,
            z_score_defensive, z_score_normal, z_score_aggressive,
            active_fraction_defensive, active_fraction_normal, active_fraction_aggressive,
            stable_width_cap,
            stable_volatility_threshold, default_volatility_threshold
        FROM score_weights
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	w := &types.ScoreWeights{}
	row := DB.QueryRow(query, configName)
	err := row.Scan(
		&w.HealthWeight, &w.ReturnWeight, &w.RiskWeightCap,
		&w.MinTVLUSD, &w.MinVolume24hUSD,
		&w.SuspectAPRCeiling, &w.SuspectVolumeTvlMultiple,
		&w.ZScoreDefensive, &w.ZScoreNormal, &w.ZScoreAggressive,
		&w.ActiveFractionDefensive, &w.ActiveFractionNormal, &w.ActiveFractionAggressive,
		&w.StableWidthCap,
		&w.StableVolatilityThreshold, &w.DefaultVolatilityThreshold,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active score weights found for config '%s'", configName)
		}
		return nil, fmt.Errorf("failed to scan active score weights for config '%s': %w", configName, err)
	}
	log.Info().Str("config", configName).Msg("Loaded active score weights")
	return w, nil
}

// LoadLatestScoreWeights loads the most recently activated weights for a given config name.
func LoadLatestScoreWeights(configName string) (*types.ScoreWeights, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT
            health_weight, return_weight, risk_weight_cap,
            min_tvl_usd, min_volume_24h_usd,
            suspect_apr_ceiling, suspect_volume_tvl_multiple,
            z_score_defensive, z_score_normal, z_score_aggressive,
            active_fraction_defensive, active_fraction_normal, active_fraction_aggressive,
            stable_width_cap,
            stable_volatility_threshold, default_volatility_threshold
        FROM score_weights
        WHERE config_name = $1
        ORDER BY activated_at DESC, created_at DESC
        LIMIT 1;`

	w := &types.ScoreWeights{}
	row := DB.QueryRow(query, configName)
	err := row.Scan(
		&w.HealthWeight, &w.ReturnWeight, &w.RiskWeightCap,
		&w.MinTVLUSD, &w.MinVolume24hUSD,
		&w.SuspectAPRCeiling, &w.SuspectVolumeTvlMultiple,
		&w.ZScoreDefensive, &w.ZScoreNormal, &w.ZScoreAggressive,
		&w.ActiveFractionDefensive, &w.ActiveFractionNormal, &w.ActiveFractionAggressive,
		&w.StableWidthCap,
		&w.StableVolatilityThreshold, &w.DefaultVolatilityThreshold,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no score weights found for config '%s'", configName)
		}
		return nil, fmt.Errorf("failed to scan latest score weights for config '%s': %w", configName, err)
	}
	log.Info().Str("config", configName).Msg("Loaded latest score weights (by activation/creation time)")
	return w, nil
}

// NextScoreWeightsVersion returns the next unused version number for a config name.
func NextScoreWeightsVersion(configName string) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `SELECT COALESCE(MAX(version), 0) + 1 FROM score_weights WHERE config_name = $1;`

	var next int
	if err := DB.QueryRow(query, configName).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to determine next weights version for config '%s': %w", configName, err)
	}
	return next, nil
}

// GetActiveScoreWeightsID returns the weights_id of the currently active weights
func GetActiveScoreWeightsID(configName string) (*int64, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT weights_id
        FROM score_weights
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	var weightsID int64
	row := DB.QueryRow(query, configName)
	err := row.Scan(&weightsID)

	if err != nil {
		if err == sql.ErrNoRows {
			// No active weights found - this is valid, return nil
			log.Debug().Str("config", configName).Msg("No active score weights found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active score weights ID for config '%s': %w", configName, err)
	}

	log.Debug().
		Str("config", configName).
		Int64("weights_id", weightsID).
		Msg("Retrieved active score weights ID")

	return &weightsID, nil
}
