package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"SentimentPipeline/internal/domain"
	"SentimentPipeline/internal/ports"
)

const postgresPingTimeout = 5 * time.Second

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// SentimentRepository appends sentiment facts to a Postgres table.
type SentimentRepository struct {
	db    *sqlx.DB
	table string
}

var _ ports.SentimentStore = (*SentimentRepository)(nil)

// NewSentimentRepository writes into table on db.
func NewSentimentRepository(db *sqlx.DB, table string) *SentimentRepository {
	return &SentimentRepository{db: db, table: table}
}

// ConnectPostgres opens and pings the fact database.
func ConnectPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, postgresPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the fact table when it does not exist yet.
func (r *SentimentRepository) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		article_id      TEXT NOT NULL,
		target_entity   TEXT NOT NULL,
		sentiment_score DOUBLE PRECISION NOT NULL,
		sentiment_label TEXT NOT NULL,
		analyzed_at     TIMESTAMPTZ NOT NULL,
		weight          DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		confident_score DOUBLE PRECISION NOT NULL
	)`, pq.QuoteIdentifier(r.table))

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", r.table, err)
	}
	return nil
}

// Insert appends one fact row. Rows are never updated.
func (r *SentimentRepository) Insert(ctx context.Context, record domain.SentimentRecord) error {
	query, args, err := psql.
		Insert(pq.QuoteIdentifier(r.table)).
		Columns("article_id", "target_entity", "sentiment_score", "sentiment_label", "analyzed_at", "weight", "confident_score").
		Values(
			record.ArticleID,
			record.TargetEntity,
			record.SentimentScore,
			record.SentimentLabel,
			record.AnalyzedAt,
			record.Weight,
			record.ConfidentScore,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert sentiment %s/%s: %w", record.ArticleID, record.TargetEntity, err)
	}
	return nil
}
