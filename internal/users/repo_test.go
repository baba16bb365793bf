package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/promptstudio-ai/promptstudio-backend/pkg/db/models"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/enums"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT '',
  subscription_plan TEXT NOT NULL DEFAULT 'free',
  subscription_status TEXT NOT NULL DEFAULT 'inactive',
  subscription_prompts_used INTEGER NOT NULL DEFAULT 0,
  subscription_prompts_limit INTEGER NOT NULL DEFAULT 10,
  subscription_start_date DATETIME,
  subscription_end_date DATETIME,
  subscription_billing_cycle TEXT NOT NULL DEFAULT 'monthly',
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{
		ID:    uuid.New(),
		Email: email,
		Name:  "Test User",
		Subscription: models.Subscription{
			Plan:         enums.PlanFree,
			Status:       enums.SubscriptionStatusInactive,
			PromptsUsed:  3,
			PromptsLimit: 10,
			BillingCycle: enums.BillingCycleMonthly,
		},
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestFindByID(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seeded := seedUser(t, db, "find@example.com")

	found, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, seeded.Email, found.Email)

	missing, err := repo.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)

	nilID, err := repo.FindByID(ctx, uuid.Nil)
	require.NoError(t, err)
	require.Nil(t, nilID)
}

func TestFindByEmail(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedUser(t, db, "email@example.com")

	found, err := repo.FindByEmail(ctx, "email@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)

	missing, err := repo.FindByEmail(ctx, "other@example.com")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUpdateSubscription(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seeded := seedUser(t, db, "upgrade@example.com")

	start := time.Now().UTC().Truncate(time.Second)
	end := start.AddDate(0, 1, 0)
	next := models.Subscription{
		Plan:         enums.PlanStarter,
		Status:       enums.SubscriptionStatusActive,
		PromptsUsed:  3,
		PromptsLimit: 100,
		StartDate:    &start,
		EndDate:      &end,
		BillingCycle: enums.BillingCycleMonthly,
	}
	require.NoError(t, repo.UpdateSubscription(ctx, seeded.ID, next))

	reloaded, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	require.Equal(t, enums.PlanStarter, reloaded.Subscription.Plan)
	require.Equal(t, enums.SubscriptionStatusActive, reloaded.Subscription.Status)
	require.Equal(t, 3, reloaded.Subscription.PromptsUsed)
	require.Equal(t, 100, reloaded.Subscription.PromptsLimit)
	require.NotNil(t, reloaded.Subscription.EndDate)
}
