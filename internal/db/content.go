package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kamar-Folarin/brand-sync/internal/models"
)

// execBatch runs stmt once per record inside a single transaction
func (s *PostgresStore) execBatch(ctx context.Context, what, stmt string, n int, args func(i int) []interface{}) error {
	if n == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("failed to prepare %s upsert: %w", what, err)
	}
	defer prepared.Close()

	for i := 0; i < n; i++ {
		if _, err := prepared.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", what, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s upsert: %w", what, err)
	}
	return nil
}

func syncedAt(t models.SyncTracking) time.Time {
	if t.SyncedAt.IsZero() {
		return time.Now().UTC()
	}
	return t.SyncedAt
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func (s *PostgresStore) UpsertBrands(ctx context.Context, brands []*models.Brand) error {
	return s.execBatch(ctx, "brand", `
		INSERT INTO brands (id, name, domain, ga4_property_id, agency_analytics_campaign_id, synced_at, sync_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			domain = EXCLUDED.domain,
			ga4_property_id = EXCLUDED.ga4_property_id,
			agency_analytics_campaign_id = EXCLUDED.agency_analytics_campaign_id,
			synced_at = EXCLUDED.synced_at,
			sync_job_id = EXCLUDED.sync_job_id`,
		len(brands), func(i int) []interface{} {
			b := brands[i]
			return []interface{}{b.ID, b.Name, b.Domain, b.GA4PropertyID, b.AgencyAnalyticsCampaignID, syncedAt(b.SyncTracking), b.SyncJobID}
		})
}

func (s *PostgresStore) ListBrands(ctx context.Context) ([]*models.Brand, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, domain, ga4_property_id, agency_analytics_campaign_id, synced_at, sync_job_id
		FROM brands ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query brands: %w", err)
	}
	defer rows.Close()

	brands := []*models.Brand{}
	for rows.Next() {
		var b models.Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.Domain, &b.GA4PropertyID, &b.AgencyAnalyticsCampaignID, &b.SyncedAt, &b.SyncJobID); err != nil {
			return nil, fmt.Errorf("failed to scan brand: %w", err)
		}
		brands = append(brands, &b)
	}
	return brands, rows.Err()
}

func (s *PostgresStore) UpsertPrompts(ctx context.Context, prompts []*models.Prompt) error {
	return s.execBatch(ctx, "prompt", `
		INSERT INTO prompts (id, brand_id, text, category, created_at, synced_at, sync_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			brand_id = EXCLUDED.brand_id,
			text = EXCLUDED.text,
			category = EXCLUDED.category,
			synced_at = EXCLUDED.synced_at,
			sync_job_id = EXCLUDED.sync_job_id`,
		len(prompts), func(i int) []interface{} {
			p := prompts[i]
			return []interface{}{p.ID, p.BrandID, p.Text, p.Category, p.CreatedAt, syncedAt(p.SyncTracking), p.SyncJobID}
		})
}

func (s *PostgresStore) UpsertResponses(ctx context.Context, responses []*models.Response) error {
	return s.execBatch(ctx, "response", `
		INSERT INTO responses (id, prompt_id, brand_id, model, text, mentioned, position, sentiment, responded_at, synced_at, sync_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			prompt_id = EXCLUDED.prompt_id,
			brand_id = EXCLUDED.brand_id,
			model = EXCLUDED.model,
			text = EXCLUDED.text,
			mentioned = EXCLUDED.mentioned,
			position = EXCLUDED.position,
			sentiment = EXCLUDED.sentiment,
			responded_at = EXCLUDED.responded_at,
			synced_at = EXCLUDED.synced_at,
			sync_job_id = EXCLUDED.sync_job_id`,
		len(responses), func(i int) []interface{} {
			r := responses[i]
			return []interface{}{r.ID, r.PromptID, r.BrandID, r.Model, r.Text, r.Mentioned, nullInt(r.Position),
				r.Sentiment, r.RespondedAt, syncedAt(r.SyncTracking), r.SyncJobID}
		})
}

func (s *PostgresStore) UpsertTrafficRows(ctx context.Context, rows []*models.TrafficRow) error {
	return s.execBatch(ctx, "traffic row", `
		INSERT INTO traffic_rows (property_id, brand_id, date, channel, sessions, users, conversions, synced_at, sync_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (property_id, date, channel) DO UPDATE SET
			brand_id = EXCLUDED.brand_id,
			sessions = EXCLUDED.sessions,
			users = EXCLUDED.users,
			conversions = EXCLUDED.conversions,
			synced_at = EXCLUDED.synced_at,
			sync_job_id = EXCLUDED.sync_job_id`,
		len(rows), func(i int) []interface{} {
			r := rows[i]
			return []interface{}{r.PropertyID, r.BrandID, r.Date, r.Channel, r.Sessions, r.Users, r.Conversions,
				syncedAt(r.SyncTracking), r.SyncJobID}
		})
}

func (s *PostgresStore) UpsertCampaigns(ctx context.Context, campaigns []*models.Campaign) error {
	return s.execBatch(ctx, "campaign", `
		INSERT INTO campaigns (id, name, domain, brand_id, synced_at, sync_job_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			domain = EXCLUDED.domain,
			brand_id = EXCLUDED.brand_id,
			synced_at = EXCLUDED.synced_at,
			sync_job_id = EXCLUDED.sync_job_id`,
		len(campaigns), func(i int) []interface{} {
			c := campaigns[i]
			return []interface{}{c.ID, c.Name, c.Domain, c.BrandID, syncedAt(c.SyncTracking), c.SyncJobID}
		})
}

func (s *PostgresStore) UpsertKeywordRankings(ctx context.Context, rankings []*models.KeywordRanking) error {
	return s.execBatch(ctx, "keyword ranking", `
		INSERT INTO keyword_rankings (campaign_id, keyword, search_engine, date, rank, previous_rank, search_volume, synced_at, sync_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (campaign_id, keyword, search_engine, date) DO UPDATE SET
			rank = EXCLUDED.rank,
			previous_rank = EXCLUDED.previous_rank,
			search_volume = EXCLUDED.search_volume,
			synced_at = EXCLUDED.synced_at,
			sync_job_id = EXCLUDED.sync_job_id`,
		len(rankings), func(i int) []interface{} {
			k := rankings[i]
			return []interface{}{k.CampaignID, k.Keyword, k.SearchEngine, k.Date, nullInt(k.Rank), nullInt(k.PreviousRank),
				k.SearchVolume, syncedAt(k.SyncTracking), k.SyncJobID}
		})
}
