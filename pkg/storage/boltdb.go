package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/overlord/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketActiveWorkers = []byte("active_workers")
	bucketWorkHistory   = []byte("work_history")
	bucketEvaluations   = []byte("evaluations")
)

// BoltStore implements Store using an embedded bbolt database, following the
// same bucket-per-table, JSON-per-value layout as the rest of the system's
// persistent state.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) the state database at path and
// ensures all three logical tables exist as buckets.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: opening %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketActiveWorkers, bucketWorkHistory, bucketEvaluations} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("creating bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// AddWorker implements Store.
func (s *BoltStore) AddWorker(w *types.Worker) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActiveWorkers)
		dup := false
		if err := b.ForEach(func(_, v []byte) error {
			var existing types.Worker
			if err := json.Unmarshal(v, &existing); err != nil {
				return err
			}
			if existing.Repo == w.Repo && existing.IssueNumber == w.IssueNumber {
				dup = true
			}
			return nil
		}); err != nil {
			return err
		}
		if dup {
			return ErrDuplicateActive
		}

		data, err := json.Marshal(w)
		if err != nil {
			return err
		}
		return b.Put([]byte(w.ID), data)
	})
}

// UpdateWorker implements Store.
func (s *BoltStore) UpdateWorker(w *types.Worker) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActiveWorkers)
		if b.Get([]byte(w.ID)) == nil {
			return ErrNotFound
		}
		data, err := json.Marshal(w)
		if err != nil {
			return err
		}
		return b.Put([]byte(w.ID), data)
	})
}

// GetActive implements Store.
func (s *BoltStore) GetActive() ([]*types.Worker, error) {
	var workers []*types.Worker
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActiveWorkers)
		return b.ForEach(func(_, v []byte) error {
			var w types.Worker
			if err := json.Unmarshal(v, &w); err != nil {
				return err
			}
			workers = append(workers, &w)
			return nil
		})
	})
	return workers, err
}

// GetByIssue implements Store.
func (s *BoltStore) GetByIssue(repo string, number int) (*types.Worker, error) {
	var found *types.Worker
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActiveWorkers)
		return b.ForEach(func(_, v []byte) error {
			var w types.Worker
			if err := json.Unmarshal(v, &w); err != nil {
				return err
			}
			if w.Repo == repo && w.IssueNumber == number {
				found = &w
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// Get implements Store.
func (s *BoltStore) Get(id string) (*types.Worker, error) {
	var w types.Worker
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActiveWorkers)
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &w)
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// RecordCompletion implements Store. It is a single transaction: the active
// record is removed and a history entry inserted, or neither happens.
func (s *BoltStore) RecordCompletion(id string, status types.WorkerStatus, prNumber int, errMsg string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		active := tx.Bucket(bucketActiveWorkers)
		data := active.Get([]byte(id))
		if data == nil {
			// Either never existed, or already archived by a previous call
			// with the same id; treat both as "already archived" so retries
			// are safe.
			return ErrAlreadyArchived
		}

		var w types.Worker
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}

		now := time.Now().UTC()
		entry := &types.WorkHistoryEntry{
			ID:              w.ID,
			WorkerID:        w.ID,
			Repo:            w.Repo,
			IssueNumber:     w.IssueNumber,
			PRNumber:        prNumber,
			Status:          status,
			StartedAt:       w.StartedAt,
			CompletedAt:     now,
			ErrorMessage:    errMsg,
			DurationSeconds: int64(now.Sub(w.StartedAt).Seconds()),
		}
		entryData, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		history := tx.Bucket(bucketWorkHistory)
		if err := history.Put(historyKey(now, entry.ID), entryData); err != nil {
			return err
		}
		return active.Delete([]byte(id))
	})
}

// historyKey produces a lexicographically sortable key so that a forward
// cursor scan yields chronological order and a reverse scan yields the
// reverse-chronological order History() returns.
func historyKey(t time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d-%s", t.UnixNano(), id))
}

// History implements Store.
func (s *BoltStore) History(filter HistoryFilter) ([]*types.WorkHistoryEntry, error) {
	var entries []*types.WorkHistoryEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkHistory)
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e types.WorkHistoryEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if filter.Repo != "" && e.Repo != filter.Repo {
				continue
			}
			if filter.Status != "" && e.Status != filter.Status {
				continue
			}
			entries = append(entries, &e)
			if filter.Limit > 0 && len(entries) >= filter.Limit {
				break
			}
		}
		return nil
	})
	return entries, err
}

// DistinctRepos implements Store.
func (s *BoltStore) DistinctRepos() ([]string, error) {
	seen := map[string]bool{}
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketActiveWorkers).ForEach(func(_, v []byte) error {
			var w types.Worker
			if err := json.Unmarshal(v, &w); err != nil {
				return err
			}
			seen[w.Repo] = true
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket(bucketWorkHistory).ForEach(func(_, v []byte) error {
			var e types.WorkHistoryEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			seen[e.Repo] = true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	repos := make([]string, 0, len(seen))
	for r := range seen {
		repos = append(repos, r)
	}
	sort.Strings(repos)
	return repos, nil
}

func evaluationKey(e *types.EvaluationRecord) []byte {
	return []byte(fmt.Sprintf("%s#%d#%020d", e.Repo, e.PRNumber, e.RevisionNumber))
}

// SaveEvaluation implements Store.
func (s *BoltStore) SaveEvaluation(e *types.EvaluationRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvaluations)
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(evaluationKey(e), data)
	})
}

// Evaluations implements Store.
func (s *BoltStore) Evaluations(repo string, prNumber int) ([]*types.EvaluationRecord, error) {
	var records []*types.EvaluationRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvaluations)
		return b.ForEach(func(_, v []byte) error {
			var e types.EvaluationRecord
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.Repo == repo && e.PRNumber == prNumber {
				records = append(records, &e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RevisionNumber < records[j].RevisionNumber
	})
	return records, nil
}
