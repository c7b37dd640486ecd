package catalog

import (
	"context"
	"fmt"
)

// requiredColumns is the minimum structure a catalog file must carry to be
// usable. Extra tables and columns are fine; missing ones are not.
var requiredColumns = map[string][]string{
	"persons":           {"id", "is_known", "full_name", "short_name", "notes", "created_date", "updated_date"},
	"dogs":              {"id", "is_known", "name", "breed", "owner", "notes", "created_date", "updated_date"},
	"images":            {"id", "filename", "filepath", "created_date", "file_size", "num_bodies", "num_faces", "num_dogs", "processed_date"},
	"face_encodings":    {"id", "person_id", "image_id", "face_encoding", "face_location"},
	"person_detections": {"id", "image_id", "person_id", "person_index", "bbox", "confidence", "has_face", "face_encoding_id", "is_locally_identified", "local_full_name", "local_short_name", "local_notes"},
	"dog_detections":    {"id", "image_id", "dog_id", "dog_index", "bbox", "confidence"},
}

// ValidateStructure checks that an existing catalog file has the tables and
// columns the engine reads. Run on read-only opens, where migrations can't
// repair anything.
func (s *Store) ValidateStructure(ctx context.Context) error {
	for table, columns := range requiredColumns {
		present, err := s.tableColumns(ctx, table)
		if err != nil {
			return err
		}
		if len(present) == 0 {
			return fmt.Errorf("catalog is missing table %q", table)
		}
		for _, col := range columns {
			if !present[col] {
				return fmt.Errorf("catalog table %q is missing column %q", table, col)
			}
		}
	}
	return nil
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info for %s: %w", table, err)
		}
		columns[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info for %s: %w", table, err)
	}
	return columns, nil
}
