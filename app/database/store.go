package database

import "fmt"

// Store bundles the repositories that share one database handle.
type Store struct {
	DB       *DB
	Sources  *SourceRepo
	Contents *ContentRepo
	Stats    *StatsRepo
}

// OpenStore opens path, applies migrations and wires the repositories.
func OpenStore(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}

	if _, _, err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{
		DB:       db,
		Sources:  NewSourceRepository(db),
		Contents: NewContentRepository(db),
		Stats:    NewStatsRepository(db),
	}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}
