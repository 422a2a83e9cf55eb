package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Principal is the authenticated caller as supplied by the auth boundary.
type Principal struct {
	UserID int64
	Role   Role
}

// CanManageOrder reports whether the principal may mutate an order owned
// by ownerID: the owner themselves or an administrator.
func (p Principal) CanManageOrder(ownerID int64) bool {
	return p.UserID == ownerID || p.Role.IsAdmin()
}

type Address struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Line1     string    `db:"line1"`
	Line2     string    `db:"line2"`
	City      string    `db:"city"`
	State     string    `db:"state"`
	ZipCode   string    `db:"zip_code"`
	Country   string    `db:"country"`
	IsDefault bool      `db:"is_default"`
	CreatedAt time.Time `db:"created_at"`
}
