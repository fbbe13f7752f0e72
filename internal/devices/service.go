package devices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrTokenRequired is returned when a registration carries no push token.
	ErrTokenRequired = errors.New("Token is required")
	// ErrEmailRequired is returned when a registration or lookup carries no email.
	ErrEmailRequired = errors.New("Email is required")
	// ErrDeviceNotFound is returned when no device matches the given key.
	ErrDeviceNotFound = errors.New("Device not found")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ConflictError reports a uniqueness violation on the named field.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("duplicate value for %s", e.Field)
}

// ServiceConfig describes the dependencies required by the device registry.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service maintains the registry of devices reachable by push notification.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the device registry service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// RegisterRequest carries the fields a client submits when registering its device.
type RegisterRequest struct {
	Token     string
	Email     string
	Name      string
	Phone     string
	Timestamp *time.Time
}

// Register upserts the device record keyed by email. An existing record keeps its
// id and creation time; token, profile fields and last activity are overwritten.
// The select-then-write runs inside one transaction so concurrent registrations
// for the same email cannot create a second record. A token already held by a
// record under a different email is a conflict, not a silent duplicate.
func (s *Service) Register(ctx context.Context, request RegisterRequest) (Device, error) {
	token := strings.TrimSpace(request.Token)
	if token == "" {
		return Device{}, ErrTokenRequired
	}
	email := strings.TrimSpace(request.Email)
	if email == "" {
		return Device{}, ErrEmailRequired
	}

	now := s.clock().UTC()
	lastActive := now
	if request.Timestamp != nil {
		lastActive = request.Timestamp.UTC()
	}

	var stored Device
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tokenHolders int64
		if err := tx.Model(&Device{}).Where("token = ? AND email <> ?", token, email).Count(&tokenHolders).Error; err != nil {
			return err
		}
		if tokenHolders > 0 {
			return &ConflictError{Field: "token"}
		}

		var existing Device
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("email = ?", email).
			Order("created_at DESC").
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			deviceID, idErr := s.idProvider.NewID()
			if idErr != nil {
				return fmt.Errorf("issue device id: %w", idErr)
			}
			stored = Device{
				ID:            deviceID,
				Token:         token,
				Email:         email,
				Name:          strings.TrimSpace(request.Name),
				Phone:         strings.TrimSpace(request.Phone),
				SchemaVersion: SchemaVersionEmailKeyed,
				LastActiveAt:  lastActive,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			return tx.Create(&stored).Error
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"token":          token,
			"name":           strings.TrimSpace(request.Name),
			"phone":          strings.TrimSpace(request.Phone),
			"last_active_at": lastActive,
			"updated_at":     now,
		}
		if err := tx.Model(&Device{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", existing.ID).Take(&stored).Error
	})
	var conflict *ConflictError
	if errors.As(txErr, &conflict) {
		return Device{}, txErr
	}
	if txErr != nil {
		s.logger.Error("device upsert failed", zap.String("email", email), zap.Error(txErr))
		return Device{}, fmt.Errorf("upsert device: %w", txErr)
	}
	return stored, nil
}

// Lookup returns the device registered under the given email.
func (s *Service) Lookup(ctx context.Context, email string) (Device, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Device{}, ErrEmailRequired
	}

	var device Device
	err := s.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		Take(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Device{}, ErrDeviceNotFound
	}
	if err != nil {
		s.logger.Error("device lookup failed", zap.String("email", email), zap.Error(err))
		return Device{}, fmt.Errorf("lookup device: %w", err)
	}
	return device, nil
}

// List returns all registered devices, newest first.
func (s *Service) List(ctx context.Context) ([]Device, error) {
	var records []Device
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&records).Error
	if err != nil {
		s.logger.Error("device list failed", zap.Error(err))
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return records, nil
}

// UpdateRequest carries the per-record maintenance fields; nil means unchanged.
type UpdateRequest struct {
	Token *string
	Email *string
	Name  *string
	Phone *string
}

// Update applies the provided fields to the device with the given id. Moving a
// device onto an email already held by a different record is a conflict.
func (s *Service) Update(ctx context.Context, id string, request UpdateRequest) (Device, error) {
	var stored Device
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var device Device
		err := tx.Where("id = ?", id).Take(&device).Error
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if request.Token != nil {
			if strings.TrimSpace(*request.Token) == "" {
				return ErrTokenRequired
			}
			updates["token"] = strings.TrimSpace(*request.Token)
		}
		if request.Email != nil {
			email := strings.TrimSpace(*request.Email)
			if email == "" {
				return ErrEmailRequired
			}
			var holders int64
			if err := tx.Model(&Device{}).Where("email = ? AND id <> ?", email, id).Count(&holders).Error; err != nil {
				return err
			}
			if holders > 0 {
				return &ConflictError{Field: "email"}
			}
			updates["email"] = email
		}
		if request.Name != nil {
			updates["name"] = strings.TrimSpace(*request.Name)
		}
		if request.Phone != nil {
			updates["phone"] = strings.TrimSpace(*request.Phone)
		}
		if len(updates) == 0 {
			stored = device
			return nil
		}
		updates["updated_at"] = s.clock().UTC()

		if err := tx.Model(&Device{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Take(&stored).Error
	})
	if errors.Is(txErr, gorm.ErrRecordNotFound) {
		return Device{}, ErrDeviceNotFound
	}
	var conflict *ConflictError
	if errors.As(txErr, &conflict) || errors.Is(txErr, ErrTokenRequired) || errors.Is(txErr, ErrEmailRequired) {
		return Device{}, txErr
	}
	if txErr != nil {
		s.logger.Error("device update failed", zap.String("id", id), zap.Error(txErr))
		return Device{}, fmt.Errorf("update device: %w", txErr)
	}
	return stored, nil
}

// Delete removes the device with the given id.
func (s *Service) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Device{})
	if result.Error != nil {
		s.logger.Error("device delete failed", zap.String("id", id), zap.Error(result.Error))
		return fmt.Errorf("delete device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Tokens returns the push tokens of every registered device. A store failure is
// reported to the caller rather than collapsed into an empty broadcast.
func (s *Service) Tokens(ctx context.Context) ([]string, error) {
	var tokens []string
	err := s.db.WithContext(ctx).Model(&Device{}).Pluck("token", &tokens).Error
	if err != nil {
		s.logger.Error("token fetch failed", zap.Error(err))
		return nil, fmt.Errorf("fetch tokens: %w", err)
	}
	return tokens, nil
}
