package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/customer"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/product"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
)

type assocKey struct {
	customerID uuid.UUID
	productID  uuid.UUID
}

// ReferenceIndex is one job's snapshot of every entity and association its
// rows may reference, keyed by every acceptable lookup form. Loaded once per
// job and read-only afterwards; a reference created mid-job is invisible to
// that job.
type ReferenceIndex struct {
	customersByID   map[uuid.UUID]customer.Ref
	customersByName map[string]customer.Ref
	customersByCode map[string]customer.Ref

	productsByID   map[uuid.UUID]product.Ref
	productsByName map[string]product.Ref
	productsBySKU  map[string]product.Ref

	associations map[assocKey]struct{}
}

func NewReferenceIndex() *ReferenceIndex {
	return &ReferenceIndex{
		customersByID:   make(map[uuid.UUID]customer.Ref),
		customersByName: make(map[string]customer.Ref),
		customersByCode: make(map[string]customer.Ref),
		productsByID:    make(map[uuid.UUID]product.Ref),
		productsByName:  make(map[string]product.Ref),
		productsBySKU:   make(map[string]product.Ref),
		associations:    make(map[assocKey]struct{}),
	}
}

func (idx *ReferenceIndex) AddCustomer(ref customer.Ref) {
	idx.customersByID[ref.ID] = ref
	idx.customersByName[strings.ToLower(ref.Name)] = ref
	if ref.Code != "" {
		idx.customersByCode[ref.Code] = ref
	}
}

func (idx *ReferenceIndex) AddProduct(ref product.Ref) {
	idx.productsByID[ref.ID] = ref
	idx.productsByName[strings.ToLower(ref.Name)] = ref
	if ref.SKU != "" {
		idx.productsBySKU[strings.ToUpper(ref.SKU)] = ref
	}
}

func (idx *ReferenceIndex) AddAssociation(customerID, productID uuid.UUID) {
	idx.associations[assocKey{customerID: customerID, productID: productID}] = struct{}{}
}

func (idx *ReferenceIndex) HasAssociation(customerID, productID uuid.UUID) bool {
	_, ok := idx.associations[assocKey{customerID: customerID, productID: productID}]
	return ok
}

// LoadCRMReferences builds the snapshot for interaction imports: all
// customers, all products, and the full association set, three queries total.
func LoadCRMReferences(ctx context.Context, customers customer.Repository, products product.Repository) (*ReferenceIndex, error) {
	idx := NewReferenceIndex()

	customerRefs, err := customers.ListRefs(ctx)
	if err != nil {
		return nil, err
	}
	for _, ref := range customerRefs {
		idx.AddCustomer(ref)
	}

	productRefs, err := products.ListRefs(ctx)
	if err != nil {
		return nil, err
	}
	for _, ref := range productRefs {
		idx.AddProduct(ref)
	}

	links, err := customers.ListProductLinks(ctx)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		idx.AddAssociation(link.CustomerID, link.ProductID)
	}
	return idx, nil
}

// ResolveCustomer resolves a single customer reference with id, name, code
// precedence. The first supplied form decides: an unresolvable supplied
// value is a hard error, never a fallback to the next form.
func (idx *ReferenceIndex) ResolveCustomer(field string, id, name, code string) (customer.Ref, *importjob.FieldError) {
	fail := func(format string, args ...any) (customer.Ref, *importjob.FieldError) {
		return customer.Ref{}, &importjob.FieldError{
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
			Category: importjob.CategoryReference,
		}
	}

	if id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return fail("%q is not a well-formed customer id", id)
		}
		ref, ok := idx.customersByID[parsed]
		if !ok {
			return fail("no customer with id %q", id)
		}
		return ref, nil
	}
	if name != "" {
		ref, ok := idx.customersByName[strings.ToLower(name)]
		if !ok {
			return fail("no customer named %q", name)
		}
		return ref, nil
	}
	if code != "" {
		ref, ok := idx.customersByCode[code]
		if !ok {
			return fail("no customer with code %q", code)
		}
		return ref, nil
	}
	return fail("no customer reference supplied")
}

// ResolveProduct resolves one product element. A value that parses as a UUID
// is treated as an id and must be present; otherwise name, then SKU.
func (idx *ReferenceIndex) ResolveProduct(field, value string) (product.Ref, *importjob.FieldError) {
	fail := func(format string, args ...any) (product.Ref, *importjob.FieldError) {
		return product.Ref{}, &importjob.FieldError{
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
			Category: importjob.CategoryReference,
		}
	}

	if parsed, err := uuid.Parse(value); err == nil {
		ref, ok := idx.productsByID[parsed]
		if !ok {
			return fail("no product with id %q", value)
		}
		return ref, nil
	}
	if ref, ok := idx.productsByName[strings.ToLower(value)]; ok {
		return ref, nil
	}
	if ref, ok := idx.productsBySKU[strings.ToUpper(value)]; ok {
		return ref, nil
	}
	return fail("no product matching %q by name or SKU", value)
}

// ResolveProducts resolves a multi-valued product reference all-or-nothing:
// any unresolvable element fails the whole list.
func (idx *ReferenceIndex) ResolveProducts(field string, values []string) ([]product.Ref, []importjob.FieldError) {
	var errs []importjob.FieldError
	refs := make([]product.Ref, 0, len(values))
	for _, value := range values {
		ref, fieldErr := idx.ResolveProduct(field, value)
		if fieldErr != nil {
			errs = append(errs, *fieldErr)
			continue
		}
		refs = append(refs, ref)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return refs, nil
}
