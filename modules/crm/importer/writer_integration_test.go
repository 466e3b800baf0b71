//go:build integration

package importer_test

import (
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/customer"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
	"github.com/meridianhq/crm-backoffice/modules/crm/importer"
	"github.com/meridianhq/crm-backoffice/modules/crm/infrastructure/persistence"
	"github.com/meridianhq/crm-backoffice/pkg/itf"
)

func customerCandidate(row int, name string) *importer.Candidate {
	return &importer.Candidate{
		RowNumber: row,
		Original:  map[string]string{"name": name, "type": "company"},
		Cleaned: importer.Record{
			"name": importer.StringValue(name),
			"type": importer.StringValue("company"),
		},
	}
}

// A failing insert must roll back only its own savepoint: every other record
// in the same transaction still lands, no matter where in the batch the bad
// record sits.
func TestWriter_SavepointIsolation(t *testing.T) {
	for _, badIndex := range []int{0, 2, 4} {
		badIndex := badIndex
		t.Run(fmt.Sprintf("bad_record_at_%d", badIndex), func(t *testing.T) {
			env := itf.Setup(t, persistence.Schema)
			customers := persistence.NewCustomerRepository()
			profile := importer.NewCustomerProfile(customers)

			_, err := customers.Create(env.Ctx, customer.Customer{Name: "Existing Co", Type: customer.TypeCompany})
			require.NoError(t, err)

			candidates := make([]*importer.Candidate, 5)
			for i := range candidates {
				candidates[i] = customerCandidate(i+2, fmt.Sprintf("Fresh Co %d", i))
			}
			// Collides with the unique name index inside the batch transaction.
			candidates[badIndex] = customerCandidate(badIndex+2, "Existing Co")

			w := &importer.Writer{Log: logrus.NewEntry(logrus.New())}
			result := w.Write(env.Ctx, profile, candidates)

			assert.Equal(t, 4, result.SuccessCount)
			require.Len(t, result.Failures, 1)
			assert.Equal(t, badIndex+2, result.Failures[0].RowNumber)
			assert.Equal(t, importjob.CategoryWrite, result.Failures[0].Errors[0].Category)

			var count int
			require.NoError(t, env.Pool.QueryRow(env.Ctx,
				"SELECT COUNT(*) FROM customers WHERE tenant_id = $1", env.TenantID,
			).Scan(&count))
			assert.Equal(t, 5, count, "pre-seeded row plus the four clean inserts")
		})
	}
}

func TestWriter_ChunkedBatches(t *testing.T) {
	env := itf.Setup(t, persistence.Schema)
	customers := persistence.NewCustomerRepository()
	profile := importer.NewCustomerProfile(customers)

	candidates := make([]*importer.Candidate, 7)
	for i := range candidates {
		candidates[i] = customerCandidate(i+2, fmt.Sprintf("Chunked Co %d", i))
	}

	w := &importer.Writer{ChunkSize: 3, Log: logrus.NewEntry(logrus.New())}
	result := w.Write(env.Ctx, profile, candidates)

	assert.Equal(t, 7, result.SuccessCount)
	assert.Empty(t, result.Failures)
}
