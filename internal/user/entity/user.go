package entity

import "time"

// Role determines which ledger operations a user may request. The gate
// itself runs in the transports; the core only records acting user IDs.
type Role string

const (
	RoleInvestor   Role = "investor"
	RoleAccountant Role = "accountant"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleInvestor || r == RoleAccountant || r == RoleAdmin
}

// CanRecord reports whether the role may write ledger entries.
func (r Role) CanRecord() bool { return r == RoleAccountant || r == RoleAdmin }

// CanValuate reports whether the role may assert portfolio valuations.
func (r Role) CanValuate() bool { return r == RoleAdmin }

// User is an identity in the system: an investor, an accountant, or an
// admin. TelegramID and PhoneNumber are each unique across all users.
type User struct {
	ID          int64      `db:"id" json:"id"`
	TelegramID  int64      `db:"telegram_id" json:"telegram_id"`
	PhoneNumber string     `db:"phone_number" json:"phone_number"`
	Name        string     `db:"name" json:"name"`
	Role        Role       `db:"role" json:"role"`
	IsVerified  bool       `db:"is_verified" json:"is_verified"`
	VerifiedAt  *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
