package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewProductProfile(nil))
	r.Register(NewCustomerProfile(nil))
	r.Register(NewInteractionProfile(nil, nil, nil))

	assert.Equal(t, []string{"customers", "interactions", "products"}, r.Kinds())

	p, err := r.Get("customers")
	require.NoError(t, err)
	assert.Equal(t, "customers", p.EntityKind())

	_, err = r.Get("vendors")
	assert.Error(t, err)
}
