package catalog

import (
	"strconv"
	"strings"
	"time"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/db"
	domcat "github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/catalog"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/candidate"
)

// Hash field names written by the ingestion path.
const (
	fieldID          = "id"
	fieldName        = "name"
	fieldDescription = "description"
	fieldCategory    = "category"
	fieldStockLevel  = "stock_level"
	fieldHarvestedAt = "harvested_at"
	fieldExpiresAt   = "expires_at"
)

var returnFields = []string{
	fieldID, FieldOrgID, FieldEntityType, fieldName, fieldDescription, fieldCategory,
	FieldPrice, fieldStockLevel, fieldHarvestedAt, fieldExpiresAt, FieldActive, FieldVector,
	db.ScoreField,
}

func parseCandidates(sr *db.SearchResult, prefix string) []candidate.Candidate {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	cs := make([]candidate.Candidate, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		cs = append(cs, candidate.New(entityFromHash(entry.Key, prefix, entry.Fields), entry.Distance))
	}
	return cs
}

// entityFromHash hydrates an entity from FT.SEARCH hash fields. Malformed
// optional fields are left unset.
func entityFromHash(key, prefix string, m map[string]string) domcat.Entity {
	e := domcat.Entity{
		ID:          m[fieldID],
		OrgID:       m[FieldOrgID],
		Type:        domcat.EntityType(strings.ToLower(m[FieldEntityType])),
		Name:        m[fieldName],
		Description: m[fieldDescription],
		Category:    m[fieldCategory],
		Active:      parseBool(m[FieldActive]),
	}
	if e.ID == "" {
		e.ID = entityID(key, prefix)
	}
	if v, err := strconv.ParseFloat(m[FieldPrice], 64); err == nil {
		e.Price = &v
	}
	if v, err := strconv.Atoi(m[fieldStockLevel]); err == nil {
		e.StockLevel = &v
	}
	e.HarvestedAt = parseTime(m[fieldHarvestedAt])
	e.ExpiresAt = parseTime(m[fieldExpiresAt])
	if blob, ok := m[FieldVector]; ok {
		if v, err := db.BytesToVector(blob); err == nil {
			e.Embedding = v
		}
	}
	return e
}

// entityID strips the key prefix and an optional "<org>:" segment.
func entityID(key, prefix string) string {
	id := strings.TrimPrefix(key, prefix)
	if i := strings.LastIndexByte(id, ':'); i >= 0 {
		id = id[i+1:]
	}
	return id
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// parseTime accepts RFC 3339 or unix seconds.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.Unix(sec, 0).UTC()
		return &t
	}
	return nil
}
