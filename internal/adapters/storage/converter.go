package storage

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/geo"
)

// encodeHits serializes hits for the cache value column. nil encodes as an empty list.
func encodeHits(hits []domain.GeoHit) (string, error) {
	if hits == nil {
		hits = []domain.GeoHit{}
	}
	data, err := json.Marshal(hits)
	if err != nil {
		return "", fmt.Errorf("encode hits: %w", err)
	}
	return string(data), nil
}

func decodeHits(value string) ([]domain.GeoHit, error) {
	hits := []domain.GeoHit{}
	if err := json.Unmarshal([]byte(value), &hits); err != nil {
		return nil, fmt.Errorf("decode hits: %w", err)
	}
	return hits, nil
}

func encodeLocation(loc geo.Location) (string, error) {
	data, err := json.Marshal(loc)
	if err != nil {
		return "", fmt.Errorf("encode location: %w", err)
	}
	return string(data), nil
}

func decodeLocation(value string) (*geo.Location, error) {
	var loc geo.Location
	if err := json.Unmarshal([]byte(value), &loc); err != nil {
		return nil, &DatabaseError{Op: "decode base location", Err: err}
	}
	return &loc, nil
}
