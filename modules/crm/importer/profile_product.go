package importer

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/product"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
)

var productSKUPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

type productProfile struct {
	products product.Repository
}

func NewProductProfile(products product.Repository) Profile {
	return &productProfile{products: products}
}

func (p *productProfile) EntityKind() string { return "products" }

func (p *productProfile) Fields() []FieldSpec {
	return []FieldSpec{
		{Name: "sku", Required: true, Type: FieldString, MaxLen: 64, OnOverflow: OverflowReject, Pattern: productSKUPattern},
		{Name: "name", Required: true, Type: FieldString, MaxLen: 255, OnOverflow: OverflowTruncate},
		{
			Name: "category", Required: true, Type: FieldEnum,
			Enum: []string{"service", "goods", "subscription"},
			EnumSynonyms: map[string]string{
				"услуга":       "service",
				"услуги":       "service",
				"товар":        "goods",
				"товары":       "goods",
				"product":      "goods",
				"подписка":     "subscription",
				"subscription plan": "subscription",
			},
		},
		{Name: "price", Type: FieldNumber},
		{Name: "description", Type: FieldString, MaxLen: 2000, OnOverflow: OverflowTruncate},
	}
}

func (p *productProfile) Synonyms() map[string]string {
	return map[string]string{
		"sku":          "sku",
		"article":      "sku",
		"артикул":      "sku",
		"name":         "name",
		"product name": "name",
		"title":        "name",
		"название":     "name",
		"category":     "category",
		"категория":    "category",
		"price":        "price",
		"cost":         "price",
		"цена":         "price",
		"description":  "description",
		"описание":     "description",
	}
}

func (p *productProfile) NaturalKeys() []NaturalKey {
	return []NaturalKey{
		{Field: "sku", Normalize: func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }},
		{Field: "name", Normalize: func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }},
	}
}

func (p *productProfile) LoadReferences(ctx context.Context) (*ReferenceIndex, error) {
	return NewReferenceIndex(), nil
}

func (p *productProfile) ResolveReferences(c *Candidate, refs *ReferenceIndex) []importjob.FieldError {
	return nil
}

func (p *productProfile) LookupExisting(ctx context.Context, field string, values []string) (map[string]DuplicateHit, error) {
	switch field {
	case "sku":
		refs, err := p.products.FindRefsBySKUs(ctx, values)
		if err != nil {
			return nil, err
		}
		return productHits(refs), nil
	case "name":
		refs, err := p.products.FindRefsByNames(ctx, values)
		if err != nil {
			return nil, err
		}
		return productHits(refs), nil
	}
	return map[string]DuplicateHit{}, nil
}

func (p *productProfile) Insert(ctx context.Context, c *Candidate) error {
	price := decimal.Zero
	if v, ok := c.Cleaned["price"]; ok && !v.IsNil() {
		price = v.Number()
	}
	_, err := p.products.Create(ctx, product.Product{
		SKU:         c.Cleaned["sku"].String(),
		Name:        c.Cleaned["name"].String(),
		Category:    product.Category(c.Cleaned["category"].String()),
		Price:       price,
		Description: c.Cleaned["description"].String(),
	})
	return err
}

func productHits(refs map[string]product.Ref) map[string]DuplicateHit {
	out := make(map[string]DuplicateHit, len(refs))
	for key, ref := range refs {
		out[key] = DuplicateHit{ID: ref.ID, Name: ref.Name}
	}
	return out
}
