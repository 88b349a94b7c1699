package services

import (
	"database/sql/driver"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dailyflo/backend/internal/database"
	"github.com/dailyflo/backend/internal/models"
	"github.com/dailyflo/backend/pkg/logger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var testSetupOnce sync.Once

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating models: %v", err)
	}

	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:        email,
		AuthProvider: models.AuthProviderEmail,
		IsActive:     true,
		Preferences:  map[string]interface{}{},
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user: %v", err)
	}
	return user
}

func seedList(t *testing.T, db *gorm.DB, ownerID uuid.UUID, name string, isDefault bool) *models.List {
	t.Helper()

	list := &models.List{
		OwnerID:   ownerID,
		Name:      name,
		Color:     models.ColorBlue,
		IsDefault: isDefault,
		Metadata:  map[string]interface{}{},
	}
	if err := db.Create(list).Error; err != nil {
		t.Fatalf("failed creating list %q: %v", name, err)
	}
	return list
}

func countDefaults(t *testing.T, db *gorm.DB, ownerID uuid.UUID) int64 {
	t.Helper()

	var count int64
	err := db.Model(&models.List{}).
		Where("owner_id = ? AND is_default = ? AND soft_deleted = ?", ownerID, true, false).
		Count(&count).Error
	if err != nil {
		t.Fatalf("failed counting defaults: %v", err)
	}
	return count
}

func TestProvisionDefaults(t *testing.T) {
	db := setupTestDB(t)
	svc := NewListService(db)
	user := seedUser(t, db, "alice@example.com")

	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.ProvisionDefaults(tx, user)
	}); err != nil {
		t.Fatalf("failed provisioning defaults: %v", err)
	}

	var inbox models.List
	if err := db.First(&inbox, "owner_id = ? AND is_default = ?", user.ID, true).Error; err != nil {
		t.Fatalf("expected a default list: %v", err)
	}
	if inbox.Name != "Inbox" {
		t.Fatalf("expected the default list to be the Inbox, got %q", inbox.Name)
	}
}

func TestSetDefault(t *testing.T) {
	db := setupTestDB(t)
	svc := NewListService(db)
	user := seedUser(t, db, "alice@example.com")

	inbox := seedList(t, db, user.ID, "Inbox", true)
	work := seedList(t, db, user.ID, "Work", false)

	t.Run("swap demotes the old default", func(t *testing.T) {
		promoted, err := svc.SetDefault(user.ID, work.ID)
		if err != nil {
			t.Fatalf("failed setting default: %v", err)
		}
		if !promoted.IsDefault {
			t.Fatal("promoted list must be default")
		}

		var old models.List
		if err := db.First(&old, "id = ?", inbox.ID).Error; err != nil {
			t.Fatalf("failed reloading old default: %v", err)
		}
		if old.IsDefault {
			t.Fatal("old default must be demoted")
		}
		if got := countDefaults(t, db, user.ID); got != 1 {
			t.Fatalf("expected exactly one default, got %d", got)
		}
	})

	t.Run("promoting the current default is stable", func(t *testing.T) {
		if _, err := svc.SetDefault(user.ID, work.ID); err != nil {
			t.Fatalf("failed repeating the swap: %v", err)
		}
		if got := countDefaults(t, db, user.ID); got != 1 {
			t.Fatalf("expected exactly one default, got %d", got)
		}
	})

	t.Run("unknown target rolls the demotion back", func(t *testing.T) {
		_, err := svc.SetDefault(user.ID, uuid.New())
		if !errors.Is(err, ErrListNotFound) {
			t.Fatalf("expected ErrListNotFound, got %v", err)
		}
		if got := countDefaults(t, db, user.ID); got != 1 {
			t.Fatalf("a failed swap must not drop the default, got %d", got)
		}
	})

	t.Run("soft-deleted lists cannot be promoted", func(t *testing.T) {
		dead := seedList(t, db, user.ID, "Dead", false)
		if err := db.Model(dead).Update("soft_deleted", true).Error; err != nil {
			t.Fatalf("failed soft deleting list: %v", err)
		}

		if _, err := svc.SetDefault(user.ID, dead.ID); !errors.Is(err, ErrListNotFound) {
			t.Fatalf("expected ErrListNotFound, got %v", err)
		}
	})

	t.Run("another owner's list cannot be promoted", func(t *testing.T) {
		other := seedUser(t, db, "bob@example.com")
		theirs := seedList(t, db, other.ID, "Theirs", true)

		if _, err := svc.SetDefault(user.ID, theirs.ID); !errors.Is(err, ErrListNotFound) {
			t.Fatalf("expected ErrListNotFound, got %v", err)
		}
		if got := countDefaults(t, db, other.ID); got != 1 {
			t.Fatalf("the other owner's default must be untouched, got %d", got)
		}
	})
}

func TestSoftDelete(t *testing.T) {
	db := setupTestDB(t)
	svc := NewListService(db)
	user := seedUser(t, db, "alice@example.com")
	list := seedList(t, db, user.ID, "Doomed", false)

	for _, title := range []string{"one", "two"} {
		task := &models.Task{
			OwnerID:       user.ID,
			ListID:        &list.ID,
			Title:         title,
			PriorityLevel: 3,
			Color:         models.ColorBlue,
			RoutineType:   models.RoutineOnce,
			Metadata:      map[string]interface{}{},
		}
		if err := db.Create(task).Error; err != nil {
			t.Fatalf("failed creating task: %v", err)
		}
	}

	t.Run("detaches tasks and keeps them live", func(t *testing.T) {
		detached, err := svc.SoftDelete(user.ID, list.ID)
		if err != nil {
			t.Fatalf("failed soft deleting list: %v", err)
		}
		if detached != 2 {
			t.Fatalf("expected 2 detached tasks, got %d", detached)
		}

		var orphans int64
		err = db.Model(&models.Task{}).
			Where("owner_id = ? AND list_id IS NULL AND soft_deleted = ?", user.ID, false).
			Count(&orphans).Error
		if err != nil {
			t.Fatalf("failed counting detached tasks: %v", err)
		}
		if orphans != 2 {
			t.Fatalf("expected 2 live inbox tasks, got %d", orphans)
		}
	})

	t.Run("deleting twice reports not found", func(t *testing.T) {
		if _, err := svc.SoftDelete(user.ID, list.ID); !errors.Is(err, ErrListNotFound) {
			t.Fatalf("expected ErrListNotFound, got %v", err)
		}
	})
}

func TestNameAvailable(t *testing.T) {
	db := setupTestDB(t)
	svc := NewListService(db)
	user := seedUser(t, db, "alice@example.com")
	list := seedList(t, db, user.ID, "Groceries", false)

	t.Run("taken by a live list", func(t *testing.T) {
		available, err := svc.NameAvailable(user.ID, "Groceries", nil)
		if err != nil {
			t.Fatalf("failed checking name: %v", err)
		}
		if available {
			t.Fatal("expected the name to be taken")
		}
	})

	t.Run("excluding the holder frees the name", func(t *testing.T) {
		available, err := svc.NameAvailable(user.ID, "Groceries", &list.ID)
		if err != nil {
			t.Fatalf("failed checking name: %v", err)
		}
		if !available {
			t.Fatal("expected the holder to keep its own name")
		}
	})

	t.Run("soft-deleted lists free their name", func(t *testing.T) {
		if err := db.Model(list).Update("soft_deleted", true).Error; err != nil {
			t.Fatalf("failed soft deleting list: %v", err)
		}
		available, err := svc.NameAvailable(user.ID, "Groceries", nil)
		if err != nil {
			t.Fatalf("failed checking name: %v", err)
		}
		if !available {
			t.Fatal("expected the name to be free again")
		}
	})
}

// Writers that race past the availability check rely on the partial unique
// index surfacing as gorm.ErrDuplicatedKey.
func TestDuplicateListNameTranslation(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "owner@example.com")
	seedList(t, db, user.ID, "Work", false)

	dup := &models.List{
		OwnerID:  user.ID,
		Name:     "Work",
		Color:    models.ColorBlue,
		Metadata: map[string]interface{}{},
	}
	err := db.Create(dup).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected a duplicated key error, got %v", err)
	}
}
