// Package sqlite persists backtest artifacts: the trade ledger, the equity
// curve, and the run summary.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/shaumne/trade-bot-bitget/internal/backtest"
	"github.com/shaumne/trade-bot-bitget/internal/model"
)

// Ledger is a single-writer SQLite store for simulation results.
type Ledger struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (l *Ledger) DB() *sql.DB { return l.db }

// Open creates the ledger, initializing the database with WAL mode and the
// schema.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened ledger at %s", path)
	return &Ledger{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT    NOT NULL,
			timeframe  TEXT    NOT NULL,
			summary    TEXT    NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS trades (
			run_id        INTEGER NOT NULL REFERENCES runs(id),
			seq           INTEGER NOT NULL,
			kind          TEXT    NOT NULL,
			reason        TEXT,
			entry_ts      INTEGER NOT NULL,
			exit_ts       INTEGER,
			entry_price   REAL    NOT NULL,
			exit_price    REAL,
			size          REAL    NOT NULL,
			profit        REAL,
			balance_after REAL    NOT NULL,
			PRIMARY KEY (run_id, seq)
		);

		CREATE TABLE IF NOT EXISTS equity_curve (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			seq    INTEGER NOT NULL,
			equity REAL    NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`)
	return err
}

// SaveRun writes a complete backtest result in one transaction and returns
// the run id.
func (l *Ledger) SaveRun(ctx context.Context, symbol, timeframe string, res backtest.Result) (int64, error) {
	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return 0, fmt.Errorf("sqlite save run: marshal summary: %w", err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	out, err := tx.ExecContext(ctx,
		`INSERT INTO runs (symbol, timeframe, summary, created_at) VALUES (?, ?, ?, ?)`,
		symbol, timeframe, string(summary), time.Now().Unix(),
	)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	runID, err := out.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, seq, kind, reason, entry_ts, exit_ts,
			entry_price, exit_price, size, profit, balance_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	for i, t := range res.Trades {
		var exitTS any
		if !t.ExitTime.IsZero() {
			exitTS = t.ExitTime.Unix()
		}
		if _, err := stmt.ExecContext(ctx, runID, i, string(t.Kind), string(t.Reason),
			t.EntryTime.Unix(), exitTS, t.EntryPrice, t.ExitPrice, t.Size, t.Profit, t.BalanceAfter); err != nil {
			stmt.Close()
			tx.Rollback()
			return 0, err
		}
	}
	stmt.Close()

	eqStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO equity_curve (run_id, seq, equity) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	for i, eq := range res.EquityCurve {
		if _, err := eqStmt.ExecContext(ctx, runID, i, eq); err != nil {
			eqStmt.Close()
			tx.Rollback()
			return 0, err
		}
	}
	eqStmt.Close()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	log.Printf("[sqlite] saved run %d: %d trades, %d equity samples", runID, len(res.Trades), len(res.EquityCurve))
	return runID, nil
}

// ReadTrades loads the trade ledger of a run, in order.
func (l *Ledger) ReadTrades(ctx context.Context, runID int64) ([]model.TradeRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT kind, reason, entry_ts, exit_ts, entry_price, exit_price, size, profit, balance_after
		FROM trades WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TradeRecord
	for rows.Next() {
		var (
			kind, reason          string
			entryTS               int64
			exitTS                sql.NullInt64
			exitPrice, profit     sql.NullFloat64
			entryPrice, size, bal float64
		)
		if err := rows.Scan(&kind, &reason, &entryTS, &exitTS, &entryPrice, &exitPrice, &size, &profit, &bal); err != nil {
			return nil, err
		}
		rec := model.TradeRecord{
			Kind:         model.TradeKind(kind),
			Reason:       model.CloseReason(reason),
			EntryTime:    time.Unix(entryTS, 0).UTC(),
			EntryPrice:   entryPrice,
			Size:         size,
			BalanceAfter: bal,
		}
		if exitTS.Valid {
			rec.ExitTime = time.Unix(exitTS.Int64, 0).UTC()
		}
		if exitPrice.Valid {
			rec.ExitPrice = exitPrice.Float64
		}
		if profit.Valid {
			rec.Profit = profit.Float64
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (l *Ledger) Close() error { return l.db.Close() }
