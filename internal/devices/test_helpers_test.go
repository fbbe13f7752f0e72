package devices

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDatabase(testContext *testing.T) *gorm.DB {
	testContext.Helper()
	databasePath := filepath.Join(testContext.TempDir(), "devices.db")
	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&Device{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}
	return database
}

type sequentialIDProvider struct {
	next int
}

func (p *sequentialIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("device-%d", p.next), nil
}

func newTestService(testContext *testing.T, database *gorm.DB, clock func() time.Time) *Service {
	testContext.Helper()
	service, err := NewService(ServiceConfig{
		Database:   database,
		Clock:      clock,
		IDProvider: &sequentialIDProvider{},
	})
	if err != nil {
		testContext.Fatalf("failed to build service: %v", err)
	}
	return service
}

func countDevices(testContext *testing.T, database *gorm.DB) int64 {
	testContext.Helper()
	var total int64
	if err := database.Model(&Device{}).Count(&total).Error; err != nil {
		testContext.Fatalf("failed to count devices: %v", err)
	}
	return total
}
