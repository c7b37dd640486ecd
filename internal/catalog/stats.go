package catalog

import (
	"context"
	"fmt"
)

// Stats summarizes catalog contents for reporting.
type Stats struct {
	Persons          int
	KnownPersons     int
	UnencodedPersons int // known persons with no stored face embedding
	Dogs             int
	KnownDogs        int
	Images           int
	ProcessedImages  int
	PersonDetections int
	DogDetections    int
	FaceEncodings    int
	AverageEncodings int
	TopEncoded       []EncodingCount
}

// EncodingCount is one row of the most-sampled identities listing.
type EncodingCount struct {
	PersonID int64
	FullName string
	Count    int
}

// CollectStats counts the catalog's rows and lists the identities with
// the most stored embeddings.
func (s *Store) CollectStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	counts := map[string]*int{
		"SELECT COUNT(*) FROM persons":                            &stats.Persons,
		"SELECT COUNT(*) FROM persons WHERE is_known = 1":         &stats.KnownPersons,
		"SELECT COUNT(*) FROM dogs":                               &stats.Dogs,
		"SELECT COUNT(*) FROM dogs WHERE is_known = 1":            &stats.KnownDogs,
		"SELECT COUNT(*) FROM images":                             &stats.Images,
		"SELECT COUNT(*) FROM images WHERE processed_date != ''":  &stats.ProcessedImages,
		"SELECT COUNT(*) FROM person_detections":                  &stats.PersonDetections,
		"SELECT COUNT(*) FROM dog_detections":                     &stats.DogDetections,
		"SELECT COUNT(*) FROM face_encodings":                     &stats.FaceEncodings,
		"SELECT COUNT(*) FROM person_average_encodings":           &stats.AverageEncodings,
		`SELECT COUNT(*) FROM persons p
			WHERE p.is_known = 1
			AND NOT EXISTS (SELECT 1 FROM face_encodings e WHERE e.person_id = p.id)`: &stats.UnencodedPersons,
	}

	for query, dest := range counts {
		if err := s.QueryRow(ctx, query).Scan(dest); err != nil {
			return nil, fmt.Errorf("collect stats: %w", err)
		}
	}

	rows, err := s.Query(ctx, `
		SELECT p.id, p.full_name, COUNT(e.id) AS n
		FROM persons p
		JOIN face_encodings e ON e.person_id = p.id
		WHERE p.is_known = 1
		GROUP BY p.id, p.full_name
		ORDER BY n DESC, p.id
		LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("top encoded persons: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ec EncodingCount
		if err := rows.Scan(&ec.PersonID, &ec.FullName, &ec.Count); err != nil {
			return nil, fmt.Errorf("scan encoding count: %w", err)
		}
		stats.TopEncoded = append(stats.TopEncoded, ec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate encoding counts: %w", err)
	}
	return stats, nil
}
