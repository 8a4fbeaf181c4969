package storage

// sqlite.go: archivo histórico de snapshots.
//
// Estrategia:
//   - `snapshots`: una fila por refresh exitoso (id, fetched_at, nº de pares).
//   - `snapshot_pairs`: los pares de cada snapshot, en el orden del upstream.
//   - Solo se escribe; la cache en memoria NUNCA se recarga desde aquí.
//   - Prune automático al arrancar: snapshots más viejos que la retención.
//   - Tiempos en unix ms (INTEGER) para que BETWEEN sea exacto.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
)

const schema = `
-- Un refresh exitoso del upstream
CREATE TABLE IF NOT EXISTS snapshots (
    id          TEXT    PRIMARY KEY,
    fetched_at  INTEGER NOT NULL,
    pair_count  INTEGER NOT NULL DEFAULT 0,
    archived_at INTEGER NOT NULL
);

-- Pares del snapshot, position = orden dentro del snapshot
CREATE TABLE IF NOT EXISTS snapshot_pairs (
    snapshot_id    TEXT    NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
    position       INTEGER NOT NULL,
    source_id      TEXT    NOT NULL,
    pair_address   TEXT,
    base_symbol    TEXT,
    base_name      TEXT,
    price_usd      TEXT,
    fdv_usd        REAL    NOT NULL DEFAULT 0,
    market_cap_usd REAL    NOT NULL DEFAULT 0,
    created_at     INTEGER,
    logo_url       TEXT,
    detail_url     TEXT,
    PRIMARY KEY (snapshot_id, position)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_at ON snapshots(fetched_at DESC);
CREATE INDEX IF NOT EXISTS idx_pairs_source ON snapshot_pairs(snapshot_id, source_id);
`

// DefaultRetention es la retención si no se configura otra.
const DefaultRetention = 7 * 24 * time.Hour

// SQLiteStorage implementa ports.SnapshotStorage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db        *sql.DB
	retention time.Duration
	now       func() time.Time
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada,
// aplica el schema y borra snapshots fuera de la retención.
func NewSQLiteStorage(path string, retention time.Duration) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	if retention <= 0 {
		retention = DefaultRetention
	}
	s := &SQLiteStorage{db: db, retention: retention, now: time.Now}
	if n, err := s.Prune(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: %w", err)
	} else if n > 0 {
		slog.Info("pruned archived snapshots", "deleted", n, "retention", retention)
	}
	return s, nil
}

// SaveSnapshot guarda el snapshot y sus pares en una transacción.
// Guardar dos veces el mismo ID no duplica nada.
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, fetched_at, pair_count, archived_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		snap.ID.String(), snap.FetchedAt.UnixMilli(), len(snap.Pairs), s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: insert snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil // ya archivado
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_pairs
			(snapshot_id, position, source_id, pair_address, base_symbol, base_name,
			 price_usd, fdv_usd, market_cap_usd, created_at, logo_url, detail_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: prepare: %w", err)
	}
	defer stmt.Close()

	for i, p := range snap.Pairs {
		var price *string
		if p.PriceUSD.Valid {
			v := p.PriceUSD.Decimal.String()
			price = &v
		}
		var createdAt *int64
		if !p.CreatedAt.IsZero() {
			ms := p.CreatedAt.UnixMilli()
			createdAt = &ms
		}

		if _, err := stmt.ExecContext(ctx,
			snap.ID.String(),
			i,
			p.SourceID,
			p.PairAddress,
			p.BaseSymbol,
			p.BaseName,
			price,
			p.FDVUSD,
			p.MarketCapUSD,
			createdAt,
			p.LogoURL,
			p.DetailURL,
		); err != nil {
			return fmt.Errorf("storage.SaveSnapshot: insert pair %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveSnapshot: commit: %w", err)
	}
	return nil
}

// ListSnapshots devuelve los resúmenes con fetched_at en [from, to], más recientes primero.
func (s *SQLiteStorage) ListSnapshots(ctx context.Context, from, to time.Time) ([]domain.SnapshotSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fetched_at, pair_count
		FROM snapshots
		WHERE fetched_at BETWEEN ? AND ?
		ORDER BY fetched_at DESC
	`, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("storage.ListSnapshots: query: %w", err)
	}

	summaries := []domain.SnapshotSummary{}
	index := make(map[string]int)
	for rows.Next() {
		var sum domain.SnapshotSummary
		var fetchedAt int64
		if err := rows.Scan(&sum.ID, &fetchedAt, &sum.PairCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("storage.ListSnapshots: scan row: %w", err)
		}
		sum.FetchedAt = time.UnixMilli(fetchedAt).UTC()
		sum.Venues = make(map[string]int)
		index[sum.ID] = len(summaries)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("storage.ListSnapshots: rows: %w", err)
	}
	rows.Close()

	if len(summaries) == 0 {
		return summaries, nil
	}

	venues, err := s.db.QueryContext(ctx, `
		SELECT p.snapshot_id, LOWER(TRIM(p.source_id)), COUNT(*)
		FROM snapshot_pairs p
		JOIN snapshots s ON s.id = p.snapshot_id
		WHERE s.fetched_at BETWEEN ? AND ?
		GROUP BY p.snapshot_id, LOWER(TRIM(p.source_id))
	`, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("storage.ListSnapshots: query venues: %w", err)
	}
	defer venues.Close()

	for venues.Next() {
		var id, venue string
		var n int
		if err := venues.Scan(&id, &venue, &n); err != nil {
			return nil, fmt.Errorf("storage.ListSnapshots: scan venue: %w", err)
		}
		if i, ok := index[id]; ok {
			summaries[i].Venues[venue] = n
		}
	}
	return summaries, venues.Err()
}

// LoadPairs devuelve los pares archivados de un snapshot en el orden en que se guardaron.
// Un ID desconocido devuelve domain.ErrSnapshotNotFound.
func (s *SQLiteStorage) LoadPairs(ctx context.Context, id string) ([]domain.PairRecord, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM snapshots WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage.LoadPairs: %s: %w", id, domain.ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage.LoadPairs: lookup: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, pair_address, base_symbol, base_name, price_usd,
		       fdv_usd, market_cap_usd, created_at, logo_url, detail_url
		FROM snapshot_pairs
		WHERE snapshot_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadPairs: query: %w", err)
	}
	defer rows.Close()

	pairs := []domain.PairRecord{}
	for rows.Next() {
		var p domain.PairRecord
		var address, symbol, name, logo, detail, price sql.NullString
		var createdAt sql.NullInt64
		if err := rows.Scan(
			&p.SourceID, &address, &symbol, &name, &price,
			&p.FDVUSD, &p.MarketCapUSD, &createdAt, &logo, &detail,
		); err != nil {
			return nil, fmt.Errorf("storage.LoadPairs: scan row: %w", err)
		}
		p.PairAddress = address.String
		p.BaseSymbol = symbol.String
		p.BaseName = name.String
		p.LogoURL = logo.String
		p.DetailURL = detail.String
		if price.Valid {
			if d, err := decimal.NewFromString(strings.TrimSpace(price.String)); err == nil {
				p.PriceUSD = decimal.NewNullDecimal(d)
			}
		}
		if createdAt.Valid {
			p.CreatedAt = time.UnixMilli(createdAt.Int64).UTC()
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// Prune borra snapshots (y sus pares) más viejos que la retención.
func (s *SQLiteStorage) Prune(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention).UnixMilli()
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshot_pairs WHERE snapshot_id IN (SELECT id FROM snapshots WHERE fetched_at < ?)`,
		cutoff,
	); err != nil {
		return 0, fmt.Errorf("storage.Prune: pairs: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("storage.Prune: snapshots: %w", err)
	}
	return res.RowsAffected()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
