package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertPersonDetection stores a resolved person detection. The identity
// variant decides which columns are filled: a catalog reference sets
// person_id, a local identity sets the local_* fields, and an unassigned
// detection leaves both empty.
func (s *Store) InsertPersonDetection(ctx context.Context, d *PersonDetection) (int64, error) {
	bbox, err := encodeBBox(d.BBox)
	if err != nil {
		return 0, err
	}

	var personID sql.NullInt64
	var locallyIdentified bool
	var local LocalIdentity
	switch d.Identity.Kind {
	case IdentityCatalog:
		personID = sql.NullInt64{Int64: d.Identity.PersonID, Valid: true}
	case IdentityLocal:
		locallyIdentified = true
		local = d.Identity.Local
	}

	var encodingID sql.NullInt64
	if d.FaceEncodingID != 0 {
		encodingID = sql.NullInt64{Int64: d.FaceEncodingID, Valid: true}
	}

	result, err := s.Exec(ctx, `
		INSERT INTO person_detections
			(image_id, person_id, person_index, bbox, confidence, has_face, face_encoding_id,
			 is_locally_identified, local_full_name, local_short_name, local_notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ImageID, personID, d.PersonIndex, bbox, d.Confidence, d.HasFace, encodingID,
		locallyIdentified, local.FullName, local.ShortName, local.Notes)
	if err != nil {
		return 0, fmt.Errorf("insert person detection: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("person detection insert id: %w", err)
	}
	d.ID = id
	return id, nil
}

func scanPersonDetection(row interface{ Scan(...any) error }) (*PersonDetection, error) {
	var d PersonDetection
	var personID, encodingID sql.NullInt64
	var locallyIdentified bool
	var local LocalIdentity
	var bbox string
	if err := row.Scan(&d.ID, &d.ImageID, &personID, &d.PersonIndex, &bbox, &d.Confidence,
		&d.HasFace, &encodingID, &locallyIdentified,
		&local.FullName, &local.ShortName, &local.Notes); err != nil {
		return nil, err
	}

	box, err := decodeBBox(bbox)
	if err != nil {
		return nil, err
	}
	d.BBox = box
	d.FaceEncodingID = encodingID.Int64

	switch {
	case personID.Valid:
		d.Identity = CatalogRef(personID.Int64)
	case locallyIdentified:
		d.Identity = LocalRef(local)
	default:
		d.Identity = IdentityRef{Kind: IdentityUnassigned}
	}
	return &d, nil
}

const personDetectionColumns = `id, image_id, person_id, person_index, bbox, confidence,
	has_face, face_encoding_id, is_locally_identified, local_full_name, local_short_name, local_notes`

// ListPersonDetectionsForImage returns the person detections of one image
// in insertion order.
func (s *Store) ListPersonDetectionsForImage(ctx context.Context, imageID int64) ([]PersonDetection, error) {
	rows, err := s.Query(ctx,
		"SELECT "+personDetectionColumns+" FROM person_detections WHERE image_id = ? ORDER BY id", imageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var detections []PersonDetection
	for rows.Next() {
		d, err := scanPersonDetection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person detection: %w", err)
		}
		detections = append(detections, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate person detections: %w", err)
	}
	return detections, nil
}

// InsertDogDetection stores a dog detection. DogID 0 means unassigned.
func (s *Store) InsertDogDetection(ctx context.Context, d *DogDetection) (int64, error) {
	bbox, err := encodeBBox(d.BBox)
	if err != nil {
		return 0, err
	}

	var dogID sql.NullInt64
	if d.DogID != 0 {
		dogID = sql.NullInt64{Int64: d.DogID, Valid: true}
	}

	result, err := s.Exec(ctx, `
		INSERT INTO dog_detections (image_id, dog_id, dog_index, bbox, confidence)
		VALUES (?, ?, ?, ?, ?)`,
		d.ImageID, dogID, d.DogIndex, bbox, d.Confidence)
	if err != nil {
		return 0, fmt.Errorf("insert dog detection: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("dog detection insert id: %w", err)
	}
	d.ID = id
	return id, nil
}

// ListDogDetectionsForImage returns the dog detections of one image.
func (s *Store) ListDogDetectionsForImage(ctx context.Context, imageID int64) ([]DogDetection, error) {
	rows, err := s.Query(ctx, `
		SELECT id, image_id, dog_id, dog_index, bbox, confidence
		FROM dog_detections WHERE image_id = ? ORDER BY id`, imageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var detections []DogDetection
	for rows.Next() {
		var d DogDetection
		var dogID sql.NullInt64
		var bbox string
		if err := rows.Scan(&d.ID, &d.ImageID, &dogID, &d.DogIndex, &bbox, &d.Confidence); err != nil {
			return nil, fmt.Errorf("scan dog detection: %w", err)
		}
		box, err := decodeBBox(bbox)
		if err != nil {
			return nil, err
		}
		d.BBox = box
		d.DogID = dogID.Int64
		detections = append(detections, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dog detections: %w", err)
	}
	return detections, nil
}
