package project

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/zurustar/blockstage/pkg/actor"
)

// ErrNoDocument は保存済みの文書がない場合のエラー
var ErrNoDocument = errors.New("no stored document")

// Store はスクリプト文書を SQLite に保存する
type Store struct {
	db *sql.DB
}

// OpenStore は SQLite データベースを開き、スキーマを作成する。
// ":memory:" を指定するとメモリ上のデータベースになる。
func OpenStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if strings.HasPrefix(dbPath, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to expand home directory: %w", err)
			}
			dbPath = filepath.Join(home, dbPath[1:])
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", dbPath, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// メモリ DB は接続ごとに別物になるので1本に絞る
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			actor_id TEXT PRIMARY KEY,
			blob BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

// Close はデータベースを閉じる
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveDocument はアクターのスクリプト文書を保存する（上書き）
func (s *Store) SaveDocument(actorID string, blob []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO documents (actor_id, blob, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(actor_id) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at
	`, actorID, blob)
	if err != nil {
		return fmt.Errorf("failed to save document of %s: %w", actorID, err)
	}
	return nil
}

// LoadDocument は保存済みの文書を返す。なければ ErrNoDocument
func (s *Store) LoadDocument(actorID string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRow("SELECT blob FROM documents WHERE actor_id = ?", actorID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoDocument, actorID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document of %s: %w", actorID, err)
	}
	return blob, nil
}

// Documents は保存済みの全文書をアクターIDごとに返す
func (s *Store) Documents() (map[string][]byte, error) {
	rows, err := s.db.Query("SELECT actor_id, blob FROM documents")
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := make(map[string][]byte)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs[id] = blob
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// Apply は保存済みの文書でアクターのスクリプトを置き換える。
// 置き換えたアクターの数を返す。
func (s *Store) Apply(actors []*actor.Actor) (int, error) {
	docs, err := s.Documents()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range actors {
		if blob, ok := docs[a.ID]; ok {
			a.Script = blob
			n++
		}
	}
	return n, nil
}
