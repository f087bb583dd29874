package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/cuemby/flightwatch/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketFlights = []byte("flights")
	bucketWorkers = []byte("workers")
)

// DBFile is the ledger file name inside the data directory
const DBFile = "flightwatch.db"

// workerRecord is the value stored in the workers bucket
type workerRecord struct {
	ID       types.WorkerID `json:"id"`
	LastSeen time.Time      `json:"last_seen"`
}

// BoltStore implements Store using bbolt
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the ledger in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, DBFile)

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketFlights, bucketWorkers} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
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

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *BoltStore) Path() string {
	return s.db.Path()
}

// Backup writes a consistent copy of the database to w and returns the
// number of bytes written
func (s *BoltStore) Backup(w io.Writer) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		n, err = tx.WriteTo(w)
		return err
	})
	return n, err
}

// Worker operations

func (s *BoltStore) RegisterWorker(id types.WorkerID, seen time.Time) error {
	if id == "" {
		return fmt.Errorf("storage: empty worker id")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(workerRecord{ID: id, LastSeen: seen})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketWorkers).Put([]byte(id), data)
	})
}

func (s *BoltStore) DeregisterWorker(id types.WorkerID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkers)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("worker %s: %w", id, ErrNotFound)
		}
		return b.Delete([]byte(id))
	})
}

// ListWorkers returns registered workers in key order
func (s *BoltStore) ListWorkers() ([]types.WorkerID, error) {
	var ids []types.WorkerID
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWorkers).ForEach(func(k, _ []byte) error {
			ids = append(ids, types.WorkerID(k))
			return nil
		})
	})
	return ids, err
}

// Flight operations

func (s *BoltStore) CreateFlight(flight *types.Flight) error {
	if flight.ID == "" {
		return fmt.Errorf("storage: empty flight id")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return putFlight(tx.Bucket(bucketFlights), flight)
	})
}

func (s *BoltStore) GetFlight(id string) (*types.Flight, error) {
	var flight types.Flight
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFlights).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("flight %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &flight)
	})
	if err != nil {
		return nil, err
	}
	return &flight, nil
}

func (s *BoltStore) ListFlights() ([]*types.Flight, error) {
	return s.listFlights(func(*types.Flight) bool { return true })
}

func (s *BoltStore) ListFlightsByOwner(owner types.WorkerID) ([]*types.Flight, error) {
	return s.listFlights(func(f *types.Flight) bool { return f.Owner == owner })
}

func (s *BoltStore) UpdateFlight(flight *types.Flight) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFlights)
		if b.Get([]byte(flight.ID)) == nil {
			return fmt.Errorf("flight %s: %w", flight.ID, ErrNotFound)
		}
		return putFlight(b, flight)
	})
}

func (s *BoltStore) DeleteFlight(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFlights).Delete([]byte(id))
	})
}

func (s *BoltStore) ReassignFlights(from, to types.WorkerID, at time.Time) ([]*types.Flight, error) {
	var moved []*types.Flight
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFlights)

		// Collect first; bbolt forbids writes while iterating with ForEach
		var owned []*types.Flight
		err := b.ForEach(func(_, v []byte) error {
			var f types.Flight
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}
			if f.Owner == from && f.Status.Unfinished() {
				owned = append(owned, &f)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, f := range owned {
			f.Owner = to
			f.Status = types.FlightStatusReady
			f.UpdatedAt = at
			if err := putFlight(b, f); err != nil {
				return err
			}
		}
		moved = owned
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func (s *BoltStore) listFlights(match func(*types.Flight) bool) ([]*types.Flight, error) {
	var flights []*types.Flight
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFlights).ForEach(func(_, v []byte) error {
			var f types.Flight
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}
			if match(&f) {
				flights = append(flights, &f)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(flights, func(i, j int) bool { return flights[i].ID < flights[j].ID })
	return flights, nil
}

func putFlight(b *bolt.Bucket, flight *types.Flight) error {
	data, err := json.Marshal(flight)
	if err != nil {
		return err
	}
	return b.Put([]byte(flight.ID), data)
}
