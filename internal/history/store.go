package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/0xlajaz/xandeum-nexus/internal/models"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Store persists one network-wide summary row per polling cycle in a
// local SQLite database. Writes are debounced: a new row is accepted
// only if the newest stored row is older than the minimum interval.
type Store struct {
	mu          sync.Mutex
	db          *sql.DB
	minInterval time.Duration
	retained    int
	now         func() time.Time
}

// Open creates the database file (and its directory) if needed.
func Open(path string, minInterval time.Duration, retained int) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS network_history (
		timestamp REAL NOT NULL,
		total_nodes INTEGER NOT NULL,
		avg_health REAL NOT NULL,
		total_storage_gb REAL NOT NULL,
		avg_paging_efficiency REAL NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:          db,
		minInterval: minInterval,
		retained:    retained,
		now:         time.Now,
	}, nil
}

// Save appends a summary row unless the last row is too recent. The
// table is pruned to the retention limit on every accepted write.
func (s *Store) Save(stats models.NetworkStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	var last float64
	err := s.db.QueryRow(`SELECT timestamp FROM network_history ORDER BY timestamp DESC LIMIT 1`).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if err == nil && now.Sub(time.Unix(int64(last), 0)) < s.minInterval {
		return nil
	}

	_, err = s.db.Exec(`INSERT INTO network_history VALUES (?, ?, ?, ?, ?)`,
		float64(now.Unix()), stats.TotalNodes, stats.AvgHealth, stats.TotalStorageGB, stats.AvgPagingEfficiency)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`DELETE FROM network_history WHERE timestamp NOT IN (
		SELECT timestamp FROM network_history ORDER BY timestamp DESC LIMIT ?
	)`, s.retained)
	if err != nil {
		logrus.Warnf("History pruning failed: %v", err)
	}

	logrus.Info("Network history snapshot saved")
	return nil
}

// Recent returns up to limit rows in chronological order.
func (s *Store) Recent(limit int) ([]models.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT timestamp, total_nodes, avg_health, total_storage_gb, avg_paging_efficiency
		FROM network_history ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.HistoryRecord
	for rows.Next() {
		var r models.HistoryRecord
		if err := rows.Scan(&r.Timestamp, &r.TotalNodes, &r.AvgHealth, &r.TotalStorageGB, &r.AvgPagingEfficiency); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order for charting.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
