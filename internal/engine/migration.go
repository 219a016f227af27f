package engine

import "fmt"

// Migrate copies every document from a source store into a destination store.
// This works for:
// - Embedded -> Remote (moving a local dataset onto a daemon)
// - Remote -> Embedded (backup/offline)
// - Memory -> SQLite (switching storage backends)
func Migrate(src Store, dst Store) error {
	collections, err := src.Collections()
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		docs, err := src.Find(name, Query{})
		if err != nil {
			return fmt.Errorf("failed to dump collection %s: %w", name, err)
		}
		for _, doc := range docs {
			if _, err := dst.Insert(name, doc); err != nil {
				return fmt.Errorf("failed to insert into %s: %w", name, err)
			}
		}
	}
	return nil
}
