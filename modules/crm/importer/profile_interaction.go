package importer

import (
	"context"

	"github.com/google/uuid"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/customer"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/interaction"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/product"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
)

type interactionProfile struct {
	interactions interaction.Repository
	customers    customer.Repository
	products     product.Repository
}

func NewInteractionProfile(
	interactions interaction.Repository,
	customers customer.Repository,
	products product.Repository,
) Profile {
	return &interactionProfile{
		interactions: interactions,
		customers:    customers,
		products:     products,
	}
}

func (p *interactionProfile) EntityKind() string { return "interactions" }

func (p *interactionProfile) Fields() []FieldSpec {
	return []FieldSpec{
		{Name: "customer_id", Type: FieldString, MaxLen: 36, OnOverflow: OverflowReject},
		{Name: "customer", Type: FieldString, MaxLen: 255, OnOverflow: OverflowReject},
		{Name: "customer_code", Type: FieldString, MaxLen: 32, OnOverflow: OverflowReject},
		{
			Name: "kind", Required: true, Type: FieldEnum,
			Enum: []string{"call", "meeting", "email", "note"},
			EnumSynonyms: map[string]string{
				"phone call": "call",
				"звонок":     "call",
				"встреча":    "meeting",
				"письмо":     "email",
				"заметка":    "note",
				"comment":    "note",
			},
		},
		{Name: "subject", Type: FieldString, MaxLen: 255, OnOverflow: OverflowTruncate},
		{Name: "notes", Type: FieldString, MaxLen: 4000, OnOverflow: OverflowTruncate},
		{Name: "occurred_at", Required: true, Type: FieldDate},
		{Name: "products", Type: FieldList},
	}
}

func (p *interactionProfile) Synonyms() map[string]string {
	return map[string]string{
		"customer id":   "customer_id",
		"customer_id":   "customer_id",
		"customer":      "customer",
		"customer name": "customer",
		"клиент":        "customer",
		"customer code": "customer_code",
		"kind":          "kind",
		"type":          "kind",
		"тип":           "kind",
		"subject":       "subject",
		"тема":          "subject",
		"notes":         "notes",
		"note":          "notes",
		"комментарий":   "notes",
		"date":          "occurred_at",
		"occurred at":   "occurred_at",
		"occurred_at":   "occurred_at",
		"дата":          "occurred_at",
		"products":      "products",
		"product":       "products",
		"товары":        "products",
	}
}

// Interactions carry no natural keys; every valid row inserts.
func (p *interactionProfile) NaturalKeys() []NaturalKey { return nil }

func (p *interactionProfile) LoadReferences(ctx context.Context) (*ReferenceIndex, error) {
	return LoadCRMReferences(ctx, p.customers, p.products)
}

func (p *interactionProfile) ResolveReferences(c *Candidate, refs *ReferenceIndex) []importjob.FieldError {
	customerRef, fieldErr := refs.ResolveCustomer(
		"customer",
		c.Cleaned["customer_id"].String(),
		c.Cleaned["customer"].String(),
		c.Cleaned["customer_code"].String(),
	)
	if fieldErr != nil {
		return []importjob.FieldError{*fieldErr}
	}
	c.CustomerID = customerRef.ID

	productValues := c.Cleaned["products"].List()
	if len(productValues) == 0 {
		return nil
	}
	productRefs, refErrs := refs.ResolveProducts("products", productValues)
	if len(refErrs) > 0 {
		return refErrs
	}

	// Both sides resolved; the association must already exist. Its absence
	// is a business-rule violation, not a missing row.
	var errs []importjob.FieldError
	productIDs := make([]uuid.UUID, 0, len(productRefs))
	for _, ref := range productRefs {
		if !refs.HasAssociation(customerRef.ID, ref.ID) {
			errs = append(errs, importjob.FieldError{
				Field:    "products",
				Message:  "customer " + customerRef.Name + " is not associated with product " + ref.Name,
				Category: importjob.CategoryAssociation,
			})
			continue
		}
		productIDs = append(productIDs, ref.ID)
	}
	if len(errs) > 0 {
		return errs
	}
	c.ProductIDs = productIDs
	return nil
}

func (p *interactionProfile) LookupExisting(ctx context.Context, field string, values []string) (map[string]DuplicateHit, error) {
	return map[string]DuplicateHit{}, nil
}

func (p *interactionProfile) Insert(ctx context.Context, c *Candidate) error {
	_, err := p.interactions.Create(ctx, interaction.Interaction{
		CustomerID: c.CustomerID,
		ProductIDs: c.ProductIDs,
		Kind:       interaction.Kind(c.Cleaned["kind"].String()),
		Subject:    c.Cleaned["subject"].String(),
		Notes:      c.Cleaned["notes"].String(),
		OccurredAt: c.Cleaned["occurred_at"].Date(),
	})
	return err
}
