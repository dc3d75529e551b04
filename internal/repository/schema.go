package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/domain"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/database"
)

// ErrSchemaExists is returned by InitSchema when the rooms table is already
// present and force is false.
var ErrSchemaExists = errors.New("rooms table already exists")

// Migrate creates or updates the rooms table without touching existing rows.
func Migrate(db *gorm.DB) error {
	return database.AutoMigrate(db, &domain.RoomModel{})
}

// InitSchema creates the rooms table from scratch. An existing table is
// dropped first when force is true; otherwise ErrSchemaExists is returned.
func InitSchema(ctx context.Context, db *gorm.DB, force bool) error {
	m := db.WithContext(ctx).Migrator()

	if m.HasTable(&domain.RoomModel{}) {
		if !force {
			return ErrSchemaExists
		}
		if err := m.DropTable(&domain.RoomModel{}); err != nil {
			return fmt.Errorf("drop rooms table: %w", err)
		}
	}

	if err := m.CreateTable(&domain.RoomModel{}); err != nil {
		return fmt.Errorf("create rooms table: %w", err)
	}
	return nil
}
