// Package testutil provides an in-memory database and fixtures for tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"safeclicker/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq int64

// NewDB opens a private in-memory sqlite database with all tables migrated.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("file:safeclicker_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func Uint(v uint) *uint { return &v }

// Department inserts a department and returns its id.
func Department(t testing.TB, db *gorm.DB, name string) uint {
	t.Helper()
	d := models.Department{Name: name}
	if err := db.Create(&d).Error; err != nil {
		t.Fatalf("create department %s: %v", name, err)
	}
	return d.ID
}

// User inserts an active user. dept may be nil.
func User(t testing.TB, db *gorm.DB, email string, role models.Role, dept *uint) *models.User {
	t.Helper()
	u := &models.User{
		Email:        email,
		FullName:     "User " + email,
		Role:         role,
		DepartmentID: dept,
		IsActive:     true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

// InactiveUser inserts a user and then flips is_active off, since the column
// default would otherwise win over a false zero value.
func InactiveUser(t testing.TB, db *gorm.DB, email string, dept *uint) *models.User {
	t.Helper()
	u := User(t, db, email, models.RoleColaborador, dept)
	if err := db.Model(u).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate %s: %v", email, err)
	}
	u.IsActive = false
	return u
}

// Campaign inserts c as given.
func Campaign(t testing.TB, db *gorm.DB, c *models.Campaign) *models.Campaign {
	t.Helper()
	if c.Name == "" {
		c.Name = "campaign"
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return c
}
