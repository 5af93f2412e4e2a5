package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/condofee/internal/ledger/domain"
	"github.com/smallbiznis/condofee/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func strPtr(v string) *string { return &v }

func TestInsertSkipsBookedExternalID(t *testing.T) {
	db := dbtest.Open(t)
	node := dbtest.Node(t)
	fx := dbtest.NewFixtures(t, db)
	household := fx.Household("A101", fx.Building("B1"), 60)
	period := fx.Period("October 2026",
		time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC))
	invoice := fx.Invoice(household, period, 300000)

	repo := Provide()
	ctx := context.Background()
	newEvent := func(externalID *string) *ledgerdomain.PaymentEvent {
		return &ledgerdomain.PaymentEvent{
			ID:            node.Generate(),
			InvoiceID:     invoice,
			Amount:        decimal.NewFromInt(100000),
			Method:        ledgerdomain.MethodVNPay,
			Payer:         "gateway",
			ExternalTxnID: externalID,
			CreatedAt:     time.Now().UTC(),
		}
	}

	inserted, err := repo.Insert(ctx, db, newEvent(strPtr("14000001")))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Insert(ctx, db, newEvent(strPtr("14000001")))
	require.NoError(t, err)
	assert.False(t, inserted)

	// Manual payments carry no external id and never collide.
	for i := 0; i < 2; i++ {
		inserted, err = repo.Insert(ctx, db, newEvent(nil))
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	assert.Equal(t, int64(3), dbtest.Count(t, db, "payment_events", ""))
	total, err := repo.SumByInvoice(ctx, db, invoice)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(300000)), "got %s", total)
}

func TestInsertBuildsDialectConflictClause(t *testing.T) {
	tests := []struct {
		name      string
		dialector gorm.Dialector
		want      string
	}{
		{
			name: "postgres",
			dialector: postgres.New(postgres.Config{
				DSN: "host=127.0.0.1 user=condofee dbname=condofee sslmode=disable",
			}),
			want: "ON CONFLICT",
		},
		{
			name: "mysql",
			dialector: mysql.New(mysql.Config{
				DSN:                       "condofee:condofee@tcp(127.0.0.1:3306)/condofee",
				SkipInitializeWithVersion: true,
			}),
			want: "ON DUPLICATE KEY UPDATE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := gorm.Open(tt.dialector, &gorm.Config{DryRun: true, DisableAutomaticPing: true})
			require.NoError(t, err)
			t.Cleanup(func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			})

			var statement string
			require.NoError(t, db.Callback().Create().After("gorm:create").Register("test:capture", func(tx *gorm.DB) {
				statement = tx.Statement.SQL.String()
			}))

			_, err = Provide().Insert(context.Background(), db, &ledgerdomain.PaymentEvent{
				ID:            1,
				InvoiceID:     2,
				Amount:        decimal.NewFromInt(100000),
				Method:        ledgerdomain.MethodVNPay,
				ExternalTxnID: strPtr("14000001"),
				CreatedAt:     time.Now().UTC(),
			})
			require.NoError(t, err)
			assert.Contains(t, statement, "INSERT INTO")
			assert.Contains(t, statement, tt.want)
		})
	}
}
