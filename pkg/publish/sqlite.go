package publish

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/newtron-network/routewatch/pkg/model"
)

// SQLiteSink keeps the latest snapshot as relational tables, replaced in a
// single transaction per publish. Only the current state is kept.
type SQLiteSink struct {
	db *sql.DB
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS snapshot (
		id TEXT NOT NULL,
		started_at DATETIME,
		completed_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS devices (
		address TEXT PRIMARY KEY,
		name TEXT,
		site TEXT,
		regions TEXT,
		collected_at DATETIME,
		error TEXT
	);`,
	`CREATE TABLE IF NOT EXISTS interfaces (
		address TEXT NOT NULL,
		snmp_index TEXT NOT NULL,
		name TEXT,
		speed TEXT,
		description TEXT,
		peer_device TEXT,
		peer_interface TEXT,
		PRIMARY KEY (address, snmp_index)
	);`,
	`CREATE TABLE IF NOT EXISTS nexthops (
		address TEXT NOT NULL,
		destination TEXT NOT NULL,
		via TEXT NOT NULL,
		label TEXT,
		peer_name TEXT,
		peer_site TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS nexthops_address ON nexthops (address);`,
	`CREATE TABLE IF NOT EXISTS mpls_labels (
		address TEXT NOT NULL,
		destination TEXT NOT NULL,
		via TEXT NOT NULL,
		action TEXT,
		label TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS mpls_labels_address ON mpls_labels (address);`,
}

// NewSQLiteSink opens (creating if needed) the database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &SQLiteSink{db: db}, nil
}

func (q *SQLiteSink) Name() string { return "sqlite" }

func (q *SQLiteSink) Publish(ctx context.Context, s *model.Snapshot) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := writeSnapshot(ctx, tx, s); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite publish: %w", err)
	}
	return tx.Commit()
}

func writeSnapshot(ctx context.Context, tx *sql.Tx, s *model.Snapshot) error {
	for _, table := range []string{"snapshot", "devices", "interfaces", "nexthops", "mpls_labels"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO snapshot (id, started_at, completed_at) VALUES (?, ?, ?)",
		s.ID, s.StartedAt.UTC().Format(time.RFC3339Nano), s.CompletedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}

	for _, addr := range s.Addresses() {
		d := s.Exporters[addr]
		regions, err := json.Marshal(d.Regions)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO devices (address, name, site, regions, collected_at, error) VALUES (?, ?, ?, ?, ?, ?)",
			addr, d.Name, d.Site, string(regions), d.CollectedAt.UTC().Format(time.RFC3339Nano), d.Error); err != nil {
			return err
		}
		for idx, li := range d.Interfaces {
			if _, err := tx.ExecContext(ctx, "INSERT INTO interfaces (address, snmp_index, name, speed, description, peer_device, peer_interface) VALUES (?, ?, ?, ?, ?, ?, ?)",
				addr, idx, li.Name, li.Speed, li.Description, li.Connection.Device, li.Connection.Interface); err != nil {
				return err
			}
		}
		for dest, nh := range d.NextHops {
			if len(nh.Labels) == 0 {
				// Destination without usable hops still gets a row.
				if _, err := tx.ExecContext(ctx, "INSERT INTO nexthops (address, destination, via, label, peer_name, peer_site) VALUES (?, ?, '', '', ?, ?)",
					addr, dest, nh.Name, nh.Site); err != nil {
					return err
				}
				continue
			}
			for via, label := range nh.Labels {
				if _, err := tx.ExecContext(ctx, "INSERT INTO nexthops (address, destination, via, label, peer_name, peer_site) VALUES (?, ?, ?, ?, ?, ?)",
					addr, dest, via, label, nh.Name, nh.Site); err != nil {
					return err
				}
			}
		}
		for dest, vias := range d.MPLSLabels {
			for via, b := range vias {
				if _, err := tx.ExecContext(ctx, "INSERT INTO mpls_labels (address, destination, via, action, label) VALUES (?, ?, ?, ?, ?)",
					addr, dest, via, b.Action, b.Label); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (q *SQLiteSink) Close() error {
	return q.db.Close()
}
