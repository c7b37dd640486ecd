package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const imageColumns = "id, filename, filepath, created_date, file_size, num_bodies, num_faces, num_dogs, processed_date"

func scanImage(row interface{ Scan(...any) error }) (*Image, error) {
	var img Image
	var created, processed string
	if err := row.Scan(&img.ID, &img.Filename, &img.Filepath, &created, &img.FileSize,
		&img.NumBodies, &img.NumFaces, &img.NumDogs, &processed); err != nil {
		return nil, err
	}
	img.CreatedDate = parseTime(created)
	img.ProcessedDate = parseTime(processed)
	return &img, nil
}

// InsertImage records a photo at the start of ingestion. Counts are zero
// until UpdateImageCounts runs after resolution.
func (s *Store) InsertImage(ctx context.Context, img *Image) (int64, error) {
	result, err := s.Exec(ctx, `
		INSERT INTO images (filename, filepath, created_date, file_size, num_bodies, num_faces, num_dogs, processed_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		img.Filename, img.Filepath, formatTime(img.CreatedDate), img.FileSize,
		img.NumBodies, img.NumFaces, img.NumDogs, formatTime(img.ProcessedDate))
	if err != nil {
		return 0, fmt.Errorf("insert image: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("image insert id: %w", err)
	}
	img.ID = id
	return id, nil
}

// GetImageByPath looks an image up by its stored file path.
func (s *Store) GetImageByPath(ctx context.Context, path string) (*Image, error) {
	row := s.QueryRow(ctx, "SELECT "+imageColumns+" FROM images WHERE filepath = ? ORDER BY id LIMIT 1", path)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image by path: %w", err)
	}
	return img, nil
}

// ListImages returns all images ordered by id.
func (s *Store) ListImages(ctx context.Context) ([]Image, error) {
	rows, err := s.Query(ctx, "SELECT "+imageColumns+" FROM images ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return images, nil
}

// UpdateImageCounts finalizes an image after resolution: detection counts
// and the processed timestamp.
func (s *Store) UpdateImageCounts(ctx context.Context, imageID int64, bodies, faces, dogs int) error {
	_, err := s.Exec(ctx, `
		UPDATE images SET num_bodies = ?, num_faces = ?, num_dogs = ?, processed_date = ?
		WHERE id = ?`,
		bodies, faces, dogs, formatTime(time.Now()), imageID)
	if err != nil {
		return fmt.Errorf("update image counts: %w", err)
	}
	return nil
}

// ClearImageData removes an image's detections and embeddings but keeps the
// image row, so reprocessing starts from a clean slate.
func (s *Store) ClearImageData(ctx context.Context, imageID int64) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Dependency order: detections first (they reference encodings), then
	// the encodings anchored to this image.
	if _, err := tx.ExecContext(ctx, "DELETE FROM person_detections WHERE image_id = ?", imageID); err != nil {
		return fmt.Errorf("clear person detections: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM dog_detections WHERE image_id = ?", imageID); err != nil {
		return fmt.Errorf("clear dog detections: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM face_encodings WHERE image_id = ?", imageID); err != nil {
		return fmt.Errorf("clear face encodings: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE images SET num_bodies = 0, num_faces = 0, num_dogs = 0, processed_date = '' WHERE id = ?",
		imageID); err != nil {
		return fmt.Errorf("reset image counts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit image clear: %w", err)
	}
	return nil
}

// DeleteImage removes an image and everything anchored to it, in one
// transaction and in dependency order.
func (s *Store) DeleteImage(ctx context.Context, imageID int64) error {
	return s.DeleteImages(ctx, []int64{imageID})
}

// DeleteImages removes a batch of images and everything anchored to them
// in a single transaction, so a partially deleted group never survives.
func (s *Store) DeleteImages(ctx context.Context, imageIDs []int64) error {
	if len(imageIDs) == 0 {
		return nil
	}
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, imageID := range imageIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM person_detections WHERE image_id = ?", imageID); err != nil {
			return fmt.Errorf("delete person detections: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM dog_detections WHERE image_id = ?", imageID); err != nil {
			return fmt.Errorf("delete dog detections: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM face_encodings WHERE image_id = ?", imageID); err != nil {
			return fmt.Errorf("delete face encodings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM images WHERE id = ?", imageID); err != nil {
			return fmt.Errorf("delete image: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit image delete: %w", err)
	}
	return nil
}
