package catalog

import (
	"context"
	"fmt"
	"time"
)

// InsertFaceEncoding stores a face embedding and returns its id.
func (s *Store) InsertFaceEncoding(ctx context.Context, e *FaceEncoding) (int64, error) {
	encoding, err := encodeVector(e.Encoding)
	if err != nil {
		return 0, err
	}
	location, err := encodeBBox(e.Location)
	if err != nil {
		return 0, err
	}

	result, err := s.Exec(ctx, `
		INSERT INTO face_encodings (person_id, image_id, face_encoding, face_location)
		VALUES (?, ?, ?, ?)`,
		e.PersonID, e.ImageID, encoding, location)
	if err != nil {
		return 0, fmt.Errorf("insert face encoding: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("face encoding insert id: %w", err)
	}
	e.ID = id
	return id, nil
}

func scanEncoding(row interface{ Scan(...any) error }) (*FaceEncoding, error) {
	var e FaceEncoding
	var encoding, location string
	if err := row.Scan(&e.ID, &e.PersonID, &e.ImageID, &encoding, &location); err != nil {
		return nil, err
	}
	vec, err := decodeVector(encoding)
	if err != nil {
		return nil, err
	}
	loc, err := decodeBBox(location)
	if err != nil {
		return nil, err
	}
	e.Encoding = vec
	e.Location = loc
	return &e, nil
}

// ListKnownEncodings returns every embedding belonging to a known person,
// ordered by encoding id. The matcher relies on this order for its
// first-seen tie-break, so keep it stable.
func (s *Store) ListKnownEncodings(ctx context.Context) ([]FaceEncoding, error) {
	rows, err := s.Query(ctx, `
		SELECT e.id, e.person_id, e.image_id, e.face_encoding, e.face_location
		FROM face_encodings e
		JOIN persons p ON p.id = e.person_id
		WHERE p.is_known = 1
		ORDER BY e.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var encodings []FaceEncoding
	for rows.Next() {
		e, err := scanEncoding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face encoding: %w", err)
		}
		encodings = append(encodings, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face encodings: %w", err)
	}
	return encodings, nil
}

// ListEncodingsForPerson returns one person's embeddings ordered by id.
func (s *Store) ListEncodingsForPerson(ctx context.Context, personID int64) ([]FaceEncoding, error) {
	rows, err := s.Query(ctx, `
		SELECT id, person_id, image_id, face_encoding, face_location
		FROM face_encodings WHERE person_id = ? ORDER BY id`, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var encodings []FaceEncoding
	for rows.Next() {
		e, err := scanEncoding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face encoding: %w", err)
		}
		encodings = append(encodings, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face encodings: %w", err)
	}
	return encodings, nil
}

// EncodingSource locates the original face region an embedding came from,
// so embedding maintenance can re-extract it from the source file. It
// carries the stored embedding too, so a failed re-extraction can fall
// back on it without a second lookup.
type EncodingSource struct {
	EncodingID int64
	ImageID    int64
	Filepath   string
	Location   []float64
	Encoding   []float32
}

// ListEncodingSourcesForPerson returns where each of a person's embeddings
// was extracted from, paired with the stored embedding itself.
func (s *Store) ListEncodingSourcesForPerson(ctx context.Context, personID int64) ([]EncodingSource, error) {
	rows, err := s.Query(ctx, `
		SELECT e.id, e.image_id, i.filepath, e.face_location, e.face_encoding
		FROM face_encodings e
		JOIN images i ON i.id = e.image_id
		WHERE e.person_id = ?
		ORDER BY e.id`, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []EncodingSource
	for rows.Next() {
		var src EncodingSource
		var location, encoding string
		if err := rows.Scan(&src.EncodingID, &src.ImageID, &src.Filepath, &location, &encoding); err != nil {
			return nil, fmt.Errorf("scan encoding source: %w", err)
		}
		loc, err := decodeBBox(location)
		if err != nil {
			return nil, err
		}
		vec, err := decodeVector(encoding)
		if err != nil {
			return nil, err
		}
		src.Location = loc
		src.Encoding = vec
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate encoding sources: %w", err)
	}
	return sources, nil
}

// ReplaceEncodingsForPerson swaps a person's embeddings wholesale in one
// transaction. Detections pointing at the old rows keep working because
// face_encoding_id is set NULL on delete.
func (s *Store) ReplaceEncodingsForPerson(ctx context.Context, personID int64, encodings []FaceEncoding) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM face_encodings WHERE person_id = ?", personID); err != nil {
		return fmt.Errorf("delete old encodings: %w", err)
	}

	for _, e := range encodings {
		encoding, err := encodeVector(e.Encoding)
		if err != nil {
			return err
		}
		location, err := encodeBBox(e.Location)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO face_encodings (person_id, image_id, face_encoding, face_location)
			VALUES (?, ?, ?, ?)`,
			personID, e.ImageID, encoding, location); err != nil {
			return fmt.Errorf("insert replacement encoding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit encoding replacement: %w", err)
	}
	return nil
}

// UpsertAverageEncoding stores a person's average embedding along with the
// number of samples it was computed from.
func (s *Store) UpsertAverageEncoding(ctx context.Context, personID int64, encoding []float32, numSamples int) error {
	vec, err := encodeVector(encoding)
	if err != nil {
		return err
	}
	_, err = s.Exec(ctx, `
		INSERT INTO person_average_encodings (person_id, average_encoding, num_samples, created_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (person_id) DO UPDATE SET average_encoding = excluded.average_encoding,
			num_samples = excluded.num_samples, created_date = excluded.created_date`,
		personID, vec, numSamples, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("upsert average encoding: %w", err)
	}
	return nil
}

// ListAverageEncodings returns all stored average embeddings ordered by
// person id.
func (s *Store) ListAverageEncodings(ctx context.Context) ([]AverageEncoding, error) {
	rows, err := s.Query(ctx, `
		SELECT id, person_id, average_encoding, num_samples, created_date
		FROM person_average_encodings ORDER BY person_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var averages []AverageEncoding
	for rows.Next() {
		var a AverageEncoding
		var encoding, created string
		if err := rows.Scan(&a.ID, &a.PersonID, &encoding, &a.NumSamples, &created); err != nil {
			return nil, fmt.Errorf("scan average encoding: %w", err)
		}
		vec, err := decodeVector(encoding)
		if err != nil {
			return nil, err
		}
		a.Encoding = vec
		a.CreatedDate = parseTime(created)
		averages = append(averages, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate average encodings: %w", err)
	}
	return averages, nil
}
