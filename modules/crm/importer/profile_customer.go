package importer

import (
	"context"
	"regexp"
	"strings"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/customer"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
)

var customerCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type customerProfile struct {
	customers customer.Repository
}

func NewCustomerProfile(customers customer.Repository) Profile {
	return &customerProfile{customers: customers}
}

func (p *customerProfile) EntityKind() string { return "customers" }

func (p *customerProfile) Fields() []FieldSpec {
	return []FieldSpec{
		{Name: "name", Required: true, Type: FieldString, MaxLen: 255, OnOverflow: OverflowTruncate},
		{Name: "code", Type: FieldString, MaxLen: 32, OnOverflow: OverflowReject, Pattern: customerCodePattern},
		{
			Name: "type", Required: true, Type: FieldEnum,
			Enum: []string{"individual", "company"},
			EnumSynonyms: map[string]string{
				"person":      "individual",
				"private":     "individual",
				"физлицо":     "individual",
				"частное лицо": "individual",
				"org":          "company",
				"organization": "company",
				"business":     "company",
				"юрлицо":       "company",
				"организация":  "company",
				"компания":     "company",
			},
		},
		{Name: "email", Type: FieldEmail},
		{Name: "phone", Type: FieldString, MaxLen: 32, OnOverflow: OverflowReject},
		{Name: "website", Type: FieldURL},
		{Name: "address", Type: FieldString, MaxLen: 1024, OnOverflow: OverflowTruncate},
	}
}

func (p *customerProfile) Synonyms() map[string]string {
	return map[string]string{
		"name":          "name",
		"customer name": "name",
		"full name":     "name",
		"company name":  "name",
		"имя":           "name",
		"название":      "name",
		"code":          "code",
		"customer code": "code",
		"код":           "code",
		"type":          "type",
		"customer type": "type",
		"тип":           "type",
		"email":         "email",
		"e-mail":        "email",
		"mail":          "email",
		"почта":         "email",
		"phone":         "phone",
		"phone number":  "phone",
		"телефон":       "phone",
		"website":       "website",
		"site":          "website",
		"url":           "website",
		"сайт":          "website",
		"address":       "address",
		"адрес":         "address",
	}
}

func (p *customerProfile) NaturalKeys() []NaturalKey {
	return []NaturalKey{
		{Field: "name", Normalize: func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }},
		{Field: "email", Normalize: strings.ToLower},
	}
}

func (p *customerProfile) LoadReferences(ctx context.Context) (*ReferenceIndex, error) {
	return NewReferenceIndex(), nil
}

func (p *customerProfile) ResolveReferences(c *Candidate, refs *ReferenceIndex) []importjob.FieldError {
	return nil
}

func (p *customerProfile) LookupExisting(ctx context.Context, field string, values []string) (map[string]DuplicateHit, error) {
	switch field {
	case "name":
		refs, err := p.customers.FindRefsByNames(ctx, values)
		if err != nil {
			return nil, err
		}
		return customerHits(refs), nil
	case "email":
		refs, err := p.customers.FindRefsByEmails(ctx, values)
		if err != nil {
			return nil, err
		}
		return customerHits(refs), nil
	}
	return map[string]DuplicateHit{}, nil
}

func (p *customerProfile) Insert(ctx context.Context, c *Candidate) error {
	_, err := p.customers.Create(ctx, customer.Customer{
		Name:    c.Cleaned["name"].String(),
		Code:    c.Cleaned["code"].String(),
		Type:    customer.Type(c.Cleaned["type"].String()),
		Email:   c.Cleaned["email"].String(),
		Phone:   c.Cleaned["phone"].String(),
		Website: c.Cleaned["website"].String(),
		Address: c.Cleaned["address"].String(),
	})
	return err
}

func customerHits(refs map[string]customer.Ref) map[string]DuplicateHit {
	out := make(map[string]DuplicateHit, len(refs))
	for key, ref := range refs {
		out[key] = DuplicateHit{ID: ref.ID, Name: ref.Name}
	}
	return out
}
