package transactions

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/promptstudio-ai/promptstudio-backend/pkg/db/models"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/enums"
)

func setupTransactionsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  transaction_id TEXT NOT NULL UNIQUE,
  user_id TEXT,
  gateway_reference TEXT,
  customer_name TEXT,
  customer_email_mobile TEXT,
  payment_method TEXT,
  amount NUMERIC NOT NULL DEFAULT 0,
  fee NUMERIC NOT NULL DEFAULT 0,
  refund_amount NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'BDT',
  status TEXT NOT NULL DEFAULT 'pending',
  plan TEXT,
  billing_cycle TEXT,
  payment_date TEXT,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedTransaction(t *testing.T, db *gorm.DB, transactionID string, status enums.PaymentStatus) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		ID:            uuid.New(),
		TransactionID: transactionID,
		Amount:        decimal.RequireFromString("100.00"),
		Total:         decimal.RequireFromString("100.00"),
		Currency:      "BDT",
		Status:        status,
		Metadata:      json.RawMessage(`{"plan":"Starter"}`),
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	require.NoError(t, db.Create(txn).Error)
	return txn
}

func TestFindByTransactionID(t *testing.T) {
	db := setupTransactionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedTransaction(t, db, "TXN-100", enums.PaymentStatusPending)

	found, err := repo.FindByTransactionID(ctx, "TXN-100")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "TXN-100", found.TransactionID)

	missing, err := repo.FindByTransactionID(ctx, "TXN-404")
	require.NoError(t, err)
	require.Nil(t, missing)

	empty, err := repo.FindByTransactionID(ctx, "")
	require.NoError(t, err)
	require.Nil(t, empty)
}

func TestListSuccessfulSince(t *testing.T) {
	db := setupTransactionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedTransaction(t, db, "TXN-1", enums.PaymentStatusCompleted)
	seedTransaction(t, db, "TXN-2", enums.PaymentStatusSuccess)
	seedTransaction(t, db, "TXN-3", enums.PaymentStatusPending)
	seedTransaction(t, db, "TXN-4", enums.PaymentStatusFailed)

	successful, err := repo.ListSuccessfulSince(ctx, 24*time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, successful, 2)

	pending, err := repo.ListPendingSince(ctx, 24*time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "TXN-3", pending[0].TransactionID)
}

func TestPatchApplyMergesScalars(t *testing.T) {
	stored := &models.Transaction{
		TransactionID: "TXN-1",
		Amount:        decimal.RequireFromString("100.00"),
		Total:         decimal.RequireFromString("100.00"),
		Currency:      "BDT",
		Status:        enums.PaymentStatusPending,
		UpdatedAt:     time.Now().UTC().Add(-time.Hour),
	}

	status := enums.PaymentStatusCompleted
	method := "bkash"
	fee := decimal.RequireFromString("2.50")

	before := stored.UpdatedAt
	now := time.Now().UTC()
	Patch{
		Status:        &status,
		PaymentMethod: &method,
		Fee:           &fee,
	}.Apply(stored, now)

	require.Equal(t, enums.PaymentStatusCompleted, stored.Status)
	require.NotNil(t, stored.PaymentMethod)
	require.Equal(t, "bkash", *stored.PaymentMethod)
	require.True(t, stored.Fee.Equal(fee))
	// untouched fields keep their stored values
	require.True(t, stored.Amount.Equal(decimal.RequireFromString("100.00")))
	require.Equal(t, "BDT", stored.Currency)
	require.True(t, stored.UpdatedAt.After(before))
}

func TestPatchApplyIgnoresEmptyCurrency(t *testing.T) {
	stored := &models.Transaction{Currency: "BDT"}
	empty := ""
	Patch{Currency: &empty}.Apply(stored, time.Now().UTC())
	require.Equal(t, "BDT", stored.Currency)
}

func TestPatchApplyMergesMetadataShallow(t *testing.T) {
	stored := &models.Transaction{
		Metadata: json.RawMessage(`{"plan":"Starter","source":"checkout"}`),
	}

	Patch{
		Metadata: json.RawMessage(`{"plan":"lifetime","gateway":"piprapay"}`),
	}.Apply(stored, time.Now().UTC())

	var merged map[string]any
	require.NoError(t, json.Unmarshal(stored.Metadata, &merged))
	require.Equal(t, "lifetime", merged["plan"])
	require.Equal(t, "checkout", merged["source"])
	require.Equal(t, "piprapay", merged["gateway"])
}

func TestPatchApplyReplacesCorruptStoredMetadata(t *testing.T) {
	stored := &models.Transaction{
		Metadata: json.RawMessage(`not-json`),
	}

	Patch{
		Metadata: json.RawMessage(`{"plan":"Starter"}`),
	}.Apply(stored, time.Now().UTC())

	var merged map[string]any
	require.NoError(t, json.Unmarshal(stored.Metadata, &merged))
	require.Equal(t, "Starter", merged["plan"])
}

func TestPatchApplyRoundTripsThroughRepo(t *testing.T) {
	db := setupTransactionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	stored := seedTransaction(t, db, "TXN-RT", enums.PaymentStatusPending)

	status := enums.PaymentStatusCompleted
	amount := decimal.RequireFromString("499.99")
	Patch{Status: &status, Amount: &amount}.Apply(stored, time.Now().UTC())
	require.NoError(t, repo.Update(ctx, stored))

	reloaded, err := repo.FindByTransactionID(ctx, "TXN-RT")
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	require.Equal(t, enums.PaymentStatusCompleted, reloaded.Status)
	require.True(t, reloaded.Amount.Equal(amount))
}
