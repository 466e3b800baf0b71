package importer

import (
	"context"
	"regexp"

	"github.com/google/uuid"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
)

type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldDate   FieldType = "date"
	FieldEnum   FieldType = "enum"
	FieldEmail  FieldType = "email"
	FieldURL    FieldType = "url"
	FieldList   FieldType = "list"
)

type OverflowPolicy string

const (
	// OverflowTruncate silently caps free-text fields at MaxLen.
	OverflowTruncate OverflowPolicy = "truncate"
	// OverflowReject fails the field when it exceeds MaxLen; used for
	// identifier-like fields where truncation would corrupt the value.
	OverflowReject OverflowPolicy = "reject"
)

// FieldSpec is one field's validation contract within an entity profile.
type FieldSpec struct {
	Name       string
	Required   bool
	Type       FieldType
	MaxLen     int
	OnOverflow OverflowPolicy
	Pattern    *regexp.Regexp

	// Enum holds the canonical tokens; EnumSynonyms maps lower-cased
	// alternatives (localized labels included) onto canonical tokens.
	Enum         []string
	EnumSynonyms map[string]string
}

// NaturalKey is one duplicate-detection dimension. Normalize must match the
// normalization the store applies on lookup.
type NaturalKey struct {
	Field     string
	Normalize func(string) string
}

// DuplicateHit identifies the stored entity an input value collided with.
type DuplicateHit struct {
	ID   uuid.UUID
	Name string
}

// Candidate is one input row moving through the pipeline: raw data for
// reporting, the cleaned record after validation, and resolved reference ids
// after resolution.
type Candidate struct {
	RowNumber int
	Original  map[string]string
	Cleaned   Record

	CustomerID uuid.UUID
	ProductIDs []uuid.UUID
}

// Profile parameterizes the canonical pipeline for one entity kind. The three
// importable kinds share every pipeline stage; only the schema, synonyms,
// reference rules, natural keys and the final insert differ.
type Profile interface {
	EntityKind() string

	Fields() []FieldSpec

	// Synonyms maps lower-cased source column spellings onto target fields.
	Synonyms() map[string]string

	NaturalKeys() []NaturalKey

	// LoadReferences snapshots every entity and association the profile's
	// rows may reference. Profiles without references return an empty index.
	LoadReferences(ctx context.Context) (*ReferenceIndex, error)

	// ResolveReferences fills the candidate's resolved ids from the snapshot.
	// Returned errors are per-row; an empty slice means resolved.
	ResolveReferences(c *Candidate, refs *ReferenceIndex) []importjob.FieldError

	// LookupExisting batch-loads stored entities colliding with the given
	// normalized values of one natural-key field. One round trip per call.
	LookupExisting(ctx context.Context, field string, values []string) (map[string]DuplicateHit, error)

	// Insert writes one resolved candidate. Runs inside the writer's
	// savepoint scope.
	Insert(ctx context.Context, c *Candidate) error
}

func fieldByName(p Profile, name string) (FieldSpec, bool) {
	for _, f := range p.Fields() {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}
