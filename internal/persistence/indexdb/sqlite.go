package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"veldora.quest/internal/sim/catalogs"
	"veldora.quest/internal/sim/world"
)

// SQLiteIndex is a queryable read model over the dialogue transcript
// stream. Writes are queued to a single writer goroutine so the world
// loop never blocks on the database; the JSONL transcript log remains
// the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan world.TranscriptEntry
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan world.TranscriptEntry, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS transcripts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			requester TEXT NOT NULL,
			responder TEXT NOT NULL,
			prompt TEXT NOT NULL,
			reply TEXT NOT NULL,
			message TEXT NOT NULL,
			ok INTEGER NOT NULL,
			code TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transcripts_pair_tick ON transcripts(requester, responder, tick);`,
		`CREATE TABLE IF NOT EXISTS transfers (
			transcript_id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			item TEXT NOT NULL,
			amount INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			code TEXT,
			PRIMARY KEY (transcript_id, seq),
			FOREIGN KEY (transcript_id) REFERENCES transcripts(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_item ON transfers(item);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteTranscript implements world.TranscriptLogger. Entries are dropped
// rather than blocking when the indexer falls behind.
func (s *SQLiteIndex) WriteTranscript(entry world.TranscriptEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- entry:
	default:
	}
	return nil
}

// UpsertCatalogs records the item catalog the world was started with, so
// transcript rows can be interpreted against the right definitions.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs) error {
	if s == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	raw, err := os.ReadFile(filepath.Join(configDir, "items.json"))
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES('items',?,?,?)`,
		cats.Items.Digest, string(raw), now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTranscript, _ := s.db.Prepare(`INSERT INTO transcripts(tick,requester,responder,prompt,reply,message,ok,code,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertTransfer, _ := s.db.Prepare(`INSERT OR REPLACE INTO transfers(transcript_id,seq,item,amount,ok,code) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertTranscript != nil {
			_ = insertTranscript.Close()
		}
		if insertTransfer != nil {
			_ = insertTransfer.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for e := range s.ch {
		begin()
		if tx == nil || insertTranscript == nil {
			continue
		}
		raw, _ := json.Marshal(e)
		ok := 0
		if e.OK {
			ok = 1
		}
		res, err := tx.Stmt(insertTranscript).Exec(
			int64(e.Tick),
			e.Requester,
			e.Responder,
			e.Prompt,
			e.Reply,
			e.Message,
			ok,
			e.Code,
			string(raw),
		)
		if err != nil {
			rollback()
			continue
		}
		opCount++

		id, err := res.LastInsertId()
		if err == nil && insertTransfer != nil {
			for i, a := range e.Actions {
				aok := 0
				if a.OK {
					aok = 1
				}
				if _, err := tx.Stmt(insertTransfer).Exec(id, i, a.Item, a.Amount, aok, a.Code); err != nil {
					rollback()
					break
				}
				opCount++
			}
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
