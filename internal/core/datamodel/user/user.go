package user

import "time"

type User struct {
	ID                 string       `gorm:"primaryKey;type:uuid"`
	FirstName          string       `gorm:"column:first_name;not null"`
	LastName           string       `gorm:"column:last_name;not null"`
	Username           string       `gorm:"column:username;uniqueIndex;not null"`
	Email              string       `gorm:"column:email;uniqueIndex;not null"`
	PhoneNumber        *string      `gorm:"column:phone_number;uniqueIndex"`
	DateOfBirth        *time.Time   `gorm:"column:date_of_birth"`
	PasswordHash       string       `gorm:"column:password_hash;not null"`
	ProfilePicturePath string       `gorm:"column:profile_picture_path"`
	IsActive           bool         `gorm:"column:is_active;not null"`
	InactivatedAt      *time.Time   `gorm:"column:inactivated_at;index"`
	CreatedAt          time.Time    `gorm:"column:created_at"`
	UpdatedAt          time.Time    `gorm:"column:updated_at"`
	Roles              []Role       `gorm:"many2many:user_roles;"`
	Permissions        []Permission `gorm:"many2many:user_permissions;"`
}

type Role struct {
	ID          int64        `gorm:"primaryKey"`
	Name        string       `gorm:"column:name;uniqueIndex;not null"`
	CreatedAt   time.Time    `gorm:"column:created_at"`
	Permissions []Permission `gorm:"many2many:role_permissions;"`
}

type Permission struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// PasswordResetToken is keyed by email so each address holds at most one live token.
type PasswordResetToken struct {
	Email     string    `gorm:"primaryKey;column:email"`
	Token     string    `gorm:"column:token;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	ExpiresAt time.Time `gorm:"column:expires_at;index;not null"`
}

func (PasswordResetToken) TableName() string {
	return "password_reset_tokens"
}

// Models lists every persistence model, in dependency order, for schema tooling and tests.
func Models() []interface{} {
	return []interface{}{&Permission{}, &Role{}, &User{}, &PasswordResetToken{}}
}
