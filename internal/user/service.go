package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pishro-capital/ledger-core/internal/user/entity"
)

// sentinel errors for common failure modes
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidPhone  = errors.New("invalid phone number")
	ErrPhoneInUse    = errors.New("phone number already registered")
	ErrTelegramInUse = errors.New("telegram identity already registered")
	ErrNameRequired  = errors.New("name is required")
	ErrInvalidRole   = errors.New("invalid role")
)

// Store is the slice of the entity store the user service needs. Missing
// rows surface as sql.ErrNoRows.
type Store interface {
	Create(ctx context.Context, u *entity.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*entity.User, error)
	GetByPhone(ctx context.Context, phone string) (*entity.User, error)
	Verify(ctx context.Context, id int64) error
	UpdateRole(ctx context.Context, id int64, role entity.Role) error
	List(ctx context.Context, limit, offset int) ([]*entity.User, error)
	Search(ctx context.Context, query string) ([]*entity.User, error)
}

// Service encapsulates user identity logic and depends on an injected store.
type Service struct {
	store  Store
	logger *zap.SugaredLogger
}

func NewService(store Store, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, logger: logger}
}

// Register creates a new unverified investor identity. Phone numbers are
// normalized before the uniqueness checks so "+98912..." and "0912..."
// collide as intended.
func (s *Service) Register(ctx context.Context, telegramID int64, phone, name string) (*entity.User, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	if _, err := s.store.GetByPhone(ctx, phone); err == nil {
		return nil, ErrPhoneInUse
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check phone: %w", err)
	}
	if _, err := s.store.GetByTelegramID(ctx, telegramID); err == nil {
		return nil, ErrTelegramInUse
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check telegram id: %w", err)
	}

	now := time.Now().UTC()
	u := &entity.User{
		TelegramID:  telegramID,
		PhoneNumber: phone,
		Name:        name,
		Role:        entity.RoleInvestor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := s.store.Create(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	s.logger.Infow("user registered", "user_id", id, "telegram_id", telegramID)
	return u, nil
}

// GetByID returns one user or ErrUserNotFound.
func (s *Service) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	u, err := s.store.GetByID(ctx, id)
	return mapped(u, err)
}

// GetByTelegramID returns the user behind a chat identity.
func (s *Service) GetByTelegramID(ctx context.Context, telegramID int64) (*entity.User, error) {
	u, err := s.store.GetByTelegramID(ctx, telegramID)
	return mapped(u, err)
}

// GetByPhone returns the user behind a phone number (normalized first).
func (s *Service) GetByPhone(ctx context.Context, phone string) (*entity.User, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetByPhone(ctx, phone)
	return mapped(u, err)
}

// Verify marks a user as verified.
func (s *Service) Verify(ctx context.Context, id int64) error {
	if err := s.store.Verify(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("verify user %d: %w", id, err)
	}
	return nil
}

// UpdateRole changes a user's role.
func (s *Service) UpdateRole(ctx context.Context, id int64, role entity.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if err := s.store.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update role for user %d: %w", id, err)
	}
	return nil
}

// List returns a page of users, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*entity.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, limit, offset)
}

// Search matches users by name or phone substring.
func (s *Service) Search(ctx context.Context, query string) ([]*entity.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*entity.User{}, nil
	}
	return s.store.Search(ctx, query)
}

// TelegramChatID resolves a user ID to their Telegram chat for
// notifications.
func (s *Service) TelegramChatID(ctx context.Context, userID int64) (int64, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.TelegramID, nil
}

func mapped(u *entity.User, err error) (*entity.User, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// NormalizePhone reduces a phone number to the local 0XXXXXXXXXX form:
// separators stripped, the +98 and 98 international prefixes folded into
// the leading zero. The result must be 11 digits starting 09.
func NormalizePhone(phone string) (string, error) {
	phone = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
	switch {
	case strings.HasPrefix(phone, "+98"):
		phone = "0" + phone[3:]
	case strings.HasPrefix(phone, "98") && !strings.HasPrefix(phone, "0"):
		phone = "0" + phone[2:]
	}
	if len(phone) != 11 || !strings.HasPrefix(phone, "09") {
		return "", ErrInvalidPhone
	}
	for _, c := range phone {
		if c < '0' || c > '9' {
			return "", ErrInvalidPhone
		}
	}
	return phone, nil
}
