package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CreatePerson inserts a person and returns its id. Timestamps are set
// here; callers only fill the display fields.
func (s *Store) CreatePerson(ctx context.Context, p *Person) (int64, error) {
	now := time.Now()
	result, err := s.Exec(ctx, `
		INSERT INTO persons (is_known, full_name, short_name, notes, created_date, updated_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Known, p.FullName, p.ShortName, p.Notes, formatTime(now), formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("insert person: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("person insert id: %w", err)
	}
	p.ID = id
	p.CreatedDate = now
	p.UpdatedDate = now
	return id, nil
}

func scanPerson(row interface{ Scan(...any) error }) (*Person, error) {
	var p Person
	var created, updated string
	if err := row.Scan(&p.ID, &p.Known, &p.FullName, &p.ShortName, &p.Notes, &created, &updated); err != nil {
		return nil, err
	}
	p.CreatedDate = parseTime(created)
	p.UpdatedDate = parseTime(updated)
	return &p, nil
}

const personColumns = "id, is_known, full_name, short_name, notes, created_date, updated_date"

// GetPerson fetches a single person by id.
func (s *Store) GetPerson(ctx context.Context, id int64) (*Person, error) {
	row := s.QueryRow(ctx, "SELECT "+personColumns+" FROM persons WHERE id = ?", id)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("person %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get person %d: %w", id, err)
	}
	return p, nil
}

// ListPersons returns persons ordered by id. With knownOnly set, placeholder
// identities are excluded.
func (s *Store) ListPersons(ctx context.Context, knownOnly bool) ([]Person, error) {
	query := "SELECT " + personColumns + " FROM persons ORDER BY id"
	if knownOnly {
		query = "SELECT " + personColumns + " FROM persons WHERE is_known = 1 ORDER BY id"
	}
	rows, err := s.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var persons []Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return persons, nil
}

// UpdatePerson rewrites the display fields of an existing person.
func (s *Store) UpdatePerson(ctx context.Context, p *Person) error {
	result, err := s.Exec(ctx, `
		UPDATE persons SET is_known = ?, full_name = ?, short_name = ?, notes = ?, updated_date = ?
		WHERE id = ?`,
		p.Known, p.FullName, p.ShortName, p.Notes, formatTime(time.Now()), p.ID)
	if err != nil {
		return fmt.Errorf("update person %d: %w", p.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update person %d: %w", p.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("person %d: %w", p.ID, ErrNotFound)
	}
	return nil
}

// FindKnownPersonByName looks up a known person by case-insensitive,
// whitespace-trimmed name fields. Used when importing a reference identity
// that may already exist locally.
func (s *Store) FindKnownPersonByName(ctx context.Context, fullName, shortName string) (*Person, error) {
	row := s.QueryRow(ctx, `
		SELECT `+personColumns+` FROM persons
		WHERE is_known = 1
		  AND LOWER(TRIM(full_name)) = LOWER(TRIM(?))
		  AND LOWER(TRIM(short_name)) = LOWER(TRIM(?))
		ORDER BY id LIMIT 1`,
		fullName, shortName)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find person by name: %w", err)
	}
	return p, nil
}

// MergePersons repoints every detection and embedding of the drop ids to
// keepID and deletes the dropped rows, all in one transaction.
func (s *Store) MergePersons(ctx context.Context, keepID int64, dropIDs []int64) error {
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
			"UPDATE person_detections SET person_id = ? WHERE person_id = ?", keepID, dropID); err != nil {
			return fmt.Errorf("repoint detections %d -> %d: %w", dropID, keepID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE face_encodings SET person_id = ? WHERE person_id = ?", keepID, dropID); err != nil {
			return fmt.Errorf("repoint encodings %d -> %d: %w", dropID, keepID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM person_average_encodings WHERE person_id = ?", dropID); err != nil {
			return fmt.Errorf("drop average encoding %d: %w", dropID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM persons WHERE id = ?", dropID); err != nil {
			return fmt.Errorf("delete person %d: %w", dropID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit person merge: %w", err)
	}
	return nil
}

// MergePersonInto merges dropID into keepID and overwrites the kept row's
// display fields with the adjudicated values. Used by identity clustering
// where the survivor's fields may come from either side.
func (s *Store) MergePersonInto(ctx context.Context, keepID, dropID int64, fields Person) error {
	if keepID == dropID {
		return errors.New("cannot merge a person into itself")
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE person_detections SET person_id = ? WHERE person_id = ?", keepID, dropID); err != nil {
		return fmt.Errorf("repoint detections %d -> %d: %w", dropID, keepID, err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE face_encodings SET person_id = ? WHERE person_id = ?", keepID, dropID); err != nil {
		return fmt.Errorf("repoint encodings %d -> %d: %w", dropID, keepID, err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM person_average_encodings WHERE person_id IN (?, ?)", keepID, dropID); err != nil {
		return fmt.Errorf("drop average encodings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM persons WHERE id = ?", dropID); err != nil {
		return fmt.Errorf("delete person %d: %w", dropID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE persons SET is_known = 1, full_name = ?, short_name = ?, notes = ?, updated_date = ?
		WHERE id = ?`,
		fields.FullName, fields.ShortName, fields.Notes, formatTime(time.Now()), keepID); err != nil {
		return fmt.Errorf("update kept person %d: %w", keepID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit person merge: %w", err)
	}
	return nil
}

// BackfillAnonymousPersons creates a placeholder person for every person
// detection that has no identity at all (neither catalog nor local) and
// points the detection at it. The placeholder's notes record the source
// photo. All conversions happen in one transaction; returns the number of
// detections converted.
func (s *Store) BackfillAnonymousPersons(ctx context.Context) (int, error) {
	rows, err := s.Query(ctx, `
		SELECT d.id, i.filepath FROM person_detections d
		JOIN images i ON i.id = d.image_id
		WHERE d.person_id IS NULL AND d.is_locally_identified = 0
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
			INSERT INTO persons (is_known, full_name, short_name, notes, created_date, updated_date)
			VALUES (0, '', '', ?, ?, ?)`, note, now, now)
		if err != nil {
			return 0, fmt.Errorf("insert placeholder person: %w", err)
		}
		personID, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("placeholder person id: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE person_detections SET person_id = ? WHERE id = ?", personID, p.detectionID); err != nil {
			return 0, fmt.Errorf("assign placeholder to detection %d: %w", p.detectionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit person backfill: %w", err)
	}
	return len(todo), nil
}
