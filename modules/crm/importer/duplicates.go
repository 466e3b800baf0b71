package importer

import (
	"context"

	"github.com/google/uuid"
)

// DuplicateMatch reports one input row colliding with a stored entity on a
// natural key.
type DuplicateMatch struct {
	RowNumber    int       `json:"rowNumber"`
	MatchedField string    `json:"matchedField"`
	MatchedValue string    `json:"matchedValue"`
	ExistingID   uuid.UUID `json:"existingEntityId"`
	ExistingName string    `json:"existingEntityName"`
}

// DuplicateIndex maps natural-key field -> normalized value -> stored hit.
// Built with one batched query per key dimension; classification afterwards
// is a map lookup per record, never a query.
type DuplicateIndex struct {
	byField map[string]map[string]DuplicateHit
}

// BuildDuplicateIndex collects the distinct normalized values of every
// natural key across the candidate set and issues one existence query per
// key dimension through the profile.
func BuildDuplicateIndex(ctx context.Context, p Profile, candidates []*Candidate) (*DuplicateIndex, error) {
	idx := &DuplicateIndex{byField: make(map[string]map[string]DuplicateHit)}

	for _, key := range p.NaturalKeys() {
		seen := make(map[string]struct{})
		values := make([]string, 0, len(candidates))
		for _, c := range candidates {
			value, ok := c.Cleaned[key.Field]
			if !ok || value.IsNil() {
				continue
			}
			normalized := key.Normalize(value.String())
			if normalized == "" {
				continue
			}
			if _, dup := seen[normalized]; dup {
				continue
			}
			seen[normalized] = struct{}{}
			values = append(values, normalized)
		}

		hits, err := p.LookupExisting(ctx, key.Field, values)
		if err != nil {
			return nil, err
		}
		idx.byField[key.Field] = hits
	}
	return idx, nil
}

// Classify returns the match for a candidate, or nil. A record matching any
// configured natural key is a duplicate.
func (idx *DuplicateIndex) Classify(p Profile, c *Candidate) *DuplicateMatch {
	for _, key := range p.NaturalKeys() {
		value, ok := c.Cleaned[key.Field]
		if !ok || value.IsNil() {
			continue
		}
		normalized := key.Normalize(value.String())
		hit, found := idx.byField[key.Field][normalized]
		if !found {
			continue
		}
		return &DuplicateMatch{
			RowNumber:    c.RowNumber,
			MatchedField: key.Field,
			MatchedValue: value.String(),
			ExistingID:   hit.ID,
			ExistingName: hit.Name,
		}
	}
	return nil
}
