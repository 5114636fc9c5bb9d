// Package index holds the per-run in-memory view of tracked entities, keyed
// by normalized primary key. It is built once from the persisted rows at the
// start of a run and extended with pending entities created during the run.
package index

import (
	"fmt"
	"strings"

	"MailTracker/internal/domain"
)

// Index maps a normalized primary key to all entities sharing it, in
// insertion order.
type Index struct {
	byPrimary map[string][]*domain.Entity
	size      int
}

// Normalize folds case and whitespace of a key component.
func Normalize(key string) string {
	return strings.ToLower(strings.Join(strings.Fields(key), " "))
}

// Build scans rows in table order.
func Build(rows []domain.Entity) *Index {
	ix := &Index{byPrimary: make(map[string][]*domain.Entity, len(rows))}
	for i := range rows {
		row := rows[i]
		ix.add(&row)
	}
	return ix
}

// Lookup returns every entity whose primary key matches. The returned slice
// is owned by the index and must not be modified.
func (ix *Index) Lookup(primary string) []*domain.Entity {
	return ix.byPrimary[Normalize(primary)]
}

// Match returns the first entity, in insertion order, whose primary and
// secondary keys both equal the given ones ignoring case. There is no
// primary-only fallback.
func (ix *Index) Match(primary, secondary string) *domain.Entity {
	want := Normalize(secondary)
	for _, e := range ix.Lookup(primary) {
		if Normalize(e.Secondary) == want {
			return e
		}
	}
	return nil
}

// InsertPending registers an entity that has not been written yet so that
// later messages of the same run can match it.
func (ix *Index) InsertPending(e *domain.Entity) {
	e.Location = domain.PendingLocation
	ix.add(e)
}

// PatchLocation records the persisted location of a pending entity.
func (ix *Index) PatchLocation(e *domain.Entity, location int64) error {
	if e == nil {
		return fmt.Errorf("patch location: nil entity")
	}
	if !e.Pending() {
		return fmt.Errorf("patch location: entity %q/%q already persisted at %d", e.Primary, e.Secondary, e.Location)
	}
	if location < 0 {
		return fmt.Errorf("patch location: invalid location %d", location)
	}
	e.Location = location
	return nil
}

// Len reports the number of indexed entities.
func (ix *Index) Len() int {
	return ix.size
}

func (ix *Index) add(e *domain.Entity) {
	key := Normalize(e.Primary)
	ix.byPrimary[key] = append(ix.byPrimary[key], e)
	ix.size++
}
