package store

import (
	"context"
	"encoding/json"
	"os"

	apperrors "finance-alignment-engine/pkg/errors"
	"finance-alignment-engine/pkg/logger"
)

// LoadStats summarizes one seed-file import.
type LoadStats struct {
	Loaded  int
	Skipped int
}

// LoadCollectionFile reads a JSON seed file and replaces the owner's
// collection with its records. The file holds either an array of record
// objects or a single object (used for the budget configuration document).
// Array elements that are not JSON objects are skipped and counted.
func (s *DocumentStore) LoadCollectionFile(ctx context.Context, ownerUID, collection, path string) (*LoadStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidData, "seed_file", path, err)
	}

	records, stats, err := decodeSeedFile(data)
	if err != nil {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidData, "seed_file", path, err)
	}

	if err := s.ReplaceCollection(ctx, ownerUID, collection, records); err != nil {
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"collection": collection,
		"file":       path,
		"loaded":     stats.Loaded,
		"skipped":    stats.Skipped,
	}).Info("Seed file loaded")
	return stats, nil
}

// decodeSeedFile splits a seed payload into individual record bodies.
func decodeSeedFile(data []byte) ([]json.RawMessage, *LoadStats, error) {
	stats := &LoadStats{}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		// Not an array; accept a single top-level object.
		var object map[string]json.RawMessage
		if err := json.Unmarshal(data, &object); err != nil {
			return nil, nil, err
		}
		stats.Loaded = 1
		return []json.RawMessage{json.RawMessage(data)}, stats, nil
	}

	records := make([]json.RawMessage, 0, len(elements))
	for _, element := range elements {
		var object map[string]json.RawMessage
		if err := json.Unmarshal(element, &object); err != nil {
			stats.Skipped++
			continue
		}
		records = append(records, element)
		stats.Loaded++
	}
	return records, stats, nil
}
