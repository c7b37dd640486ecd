package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

const dogColumns = "id, is_known, name, breed, owner, notes, created_date, updated_date"

func scanDog(row interface{ Scan(...any) error }) (*Dog, error) {
	var d Dog
	var created, updated string
	if err := row.Scan(&d.ID, &d.Known, &d.Name, &d.Breed, &d.Owner, &d.Notes, &created, &updated); err != nil {
		return nil, err
	}
	d.CreatedDate = parseTime(created)
	d.UpdatedDate = parseTime(updated)
	return &d, nil
}

// CreateDog inserts a dog and returns its id.
func (s *Store) CreateDog(ctx context.Context, d *Dog) (int64, error) {
	now := time.Now()
	result, err := s.Exec(ctx, `
		INSERT INTO dogs (is_known, name, breed, owner, notes, created_date, updated_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.Known, d.Name, d.Breed, d.Owner, d.Notes, formatTime(now), formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("insert dog: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("dog insert id: %w", err)
	}
	d.ID = id
	d.CreatedDate = now
	d.UpdatedDate = now
	return id, nil
}

// GetDog fetches a single dog by id.
func (s *Store) GetDog(ctx context.Context, id int64) (*Dog, error) {
	row := s.QueryRow(ctx, "SELECT "+dogColumns+" FROM dogs WHERE id = ?", id)
	d, err := scanDog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dog %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get dog %d: %w", id, err)
	}
	return d, nil
}

// ListDogs returns dogs ordered by id, optionally limited to known ones.
func (s *Store) ListDogs(ctx context.Context, knownOnly bool) ([]Dog, error) {
	query := "SELECT " + dogColumns + " FROM dogs ORDER BY id"
	if knownOnly {
		query = "SELECT " + dogColumns + " FROM dogs WHERE is_known = 1 ORDER BY id"
	}
	rows, err := s.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dogs []Dog
	for rows.Next() {
		d, err := scanDog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dog: %w", err)
		}
		dogs = append(dogs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dogs: %w", err)
	}
	return dogs, nil
}

// UpdateDog rewrites the display fields of an existing dog.
func (s *Store) UpdateDog(ctx context.Context, d *Dog) error {
	result, err := s.Exec(ctx, `
		UPDATE dogs SET is_known = ?, name = ?, breed = ?, owner = ?, notes = ?, updated_date = ?
		WHERE id = ?`,
		d.Known, d.Name, d.Breed, d.Owner, d.Notes, formatTime(time.Now()), d.ID)
	if err != nil {
		return fmt.Errorf("update dog %d: %w", d.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update dog %d: %w", d.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("dog %d: %w", d.ID, ErrNotFound)
	}
	return nil
}

// MergeDogs repoints every detection of the drop ids to keepID and deletes
// the dropped rows, all in one transaction.
func (s *Store) MergeDogs(ctx context.Context, keepID int64, dropIDs []int64) error {
	if len(dropIDs) == 0 {
		return nil
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, dropID := range dropIDs {
		if dropID == keepID {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE dog_detections SET dog_id = ? WHERE dog_id = ?", keepID, dropID); err != nil {
			return fmt.Errorf("repoint dog detections %d -> %d: %w", dropID, keepID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM dogs WHERE id = ?", dropID); err != nil {
			return fmt.Errorf("delete dog %d: %w", dropID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dog merge: %w", err)
	}
	return nil
}

// BackfillAnonymousDogs creates a placeholder dog for every dog detection
// without one and points the detection at it. Works like
// BackfillAnonymousPersons: provenance note, one transaction.
func (s *Store) BackfillAnonymousDogs(ctx context.Context) (int, error) {
	rows, err := s.Query(ctx, `
		SELECT d.id, i.filepath FROM dog_detections d
		JOIN images i ON i.id = d.image_id
		WHERE d.dog_id IS NULL
		ORDER BY d.id`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type pending struct {
		detectionID int64
		imagePath   string
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.detectionID, &p.imagePath); err != nil {
			return 0, fmt.Errorf("scan detection: %w", err)
		}
		todo = append(todo, p)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate detections: %w", err)
	}
	if len(todo) == 0 {
		return 0, nil
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	for _, p := range todo {
		note := fmt.Sprintf("backfilled from %s (detection %d)", filepath.Base(p.imagePath), p.detectionID)
		result, err := tx.ExecContext(ctx, `
			INSERT INTO dogs (is_known, name, breed, owner, notes, created_date, updated_date)
			VALUES (0, '', '', '', ?, ?, ?)`, note, now, now)
		if err != nil {
			return 0, fmt.Errorf("insert placeholder dog: %w", err)
		}
		dogID, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("placeholder dog id: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE dog_detections SET dog_id = ? WHERE id = ?", dogID, p.detectionID); err != nil {
			return 0, fmt.Errorf("assign placeholder to detection %d: %w", p.detectionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit dog backfill: %w", err)
	}
	return len(todo), nil
}
