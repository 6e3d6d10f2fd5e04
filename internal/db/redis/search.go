package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/db"
)

// Server error fragments reporting a query vector of the wrong size.
var vectorSizeErrs = []string{"blob size", "dimension", "vector size", "invalid vector"}

// SearchKNN runs a parameterized KNN vector search via FT.SEARCH.
// Server errors are classified into db sentinels wrapped in *db.Error.
func (s *Store) SearchKNN(ctx context.Context, c *db.KNNCommand) (*db.SearchResult, error) {
	if c == nil || c.Index == "" || c.Query == "" {
		return nil, fmt.Errorf("%w: command is incomplete", db.ErrInvalidQuery)
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(c.Args()...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: classifySearchErr(err)}
	}

	return parseKNNResult(raw)
}

func classifySearchErr(err error) error {
	switch {
	case isRedisErr(err, unknownCommandErrs...):
		return fmt.Errorf("%w: %w", db.ErrUnknownCommand, err)
	case isRedisErr(err, unknownIndexErrs...):
		return fmt.Errorf("%w: %w", db.ErrIndexNotFound, err)
	case isRedisErr(err, vectorSizeErrs...):
		return fmt.Errorf("%w: %w", db.ErrVectorSize, err)
	default:
		return err
	}
}

// --- Result parsing ---

func parseKNNResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, min(int(total), (len(raw)-1)/2))
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		}

		scoreStr, ok := entry.Fields[db.ScoreField]
		if !ok {
			return nil, fmt.Errorf("entry %s: missing %s", key, db.ScoreField)
		}
		entry.Distance, err = strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			return nil, fmt.Errorf("entry %s: parse score: %w", key, err)
		}
		delete(entry.Fields, db.ScoreField)

		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}
