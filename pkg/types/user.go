package types

import "time"

type Role string

const (
	RoleSudo  Role = "SUDO"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleSudo || r == RoleAdmin
}

const (
	PermViewDashboard = "viewDashboard"
	PermCreateFormAVF = "createFormAVF"
	PermCreateFormBGV = "createFormBGV"
	PermViewResponses = "viewResponses"
	PermCreateUser    = "createUser"
	PermViewUsers     = "viewUsers"
	PermEditUser      = "editUser"
)

var AllPermissions = []string{
	PermViewDashboard,
	PermCreateFormAVF,
	PermCreateFormBGV,
	PermViewResponses,
	PermCreateUser,
	PermViewUsers,
	PermEditUser,
}

func KnownPermission(name string) bool {
	for _, p := range AllPermissions {
		if p == name {
			return true
		}
	}
	return false
}

type Permissions map[string]bool

type DeviceEntry struct {
	DeviceInfo string    `json:"deviceInfo"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	LoginAt    time.Time `json:"loginAt"`
}

type LoginLog struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip,omitempty"`
}

type User struct {
	ID           string        `db:"id" json:"id"`
	Username     string        `db:"username" json:"username"`
	Email        string        `db:"email" json:"email"`
	Phone        *string       `db:"phone" json:"phone"`
	PasswordHash string        `db:"password_hash" json:"-"`
	Role         Role          `db:"role" json:"role"`
	Permissions  Permissions   `db:"permissions" json:"permissions"`
	Avatar       *string       `db:"avatar" json:"avatar,omitempty"`
	CreatedBy    *string       `db:"created_by" json:"createdBy"`
	OTPCode      *string       `db:"otp_code" json:"-"`
	OTPExpiresAt *time.Time    `db:"otp_expires_at" json:"-"`
	Devices      []DeviceEntry `db:"devices" json:"devices,omitempty"`
	Logs         []LoginLog    `db:"logs" json:"logs,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updatedAt"`
}

// Can reports whether the user holds permission perm. SUDO holds every permission.
func (u *User) Can(perm string) bool {
	if u == nil {
		return false
	}
	if u.Role == RoleSudo {
		return true
	}
	return u.Permissions[perm]
}

type CreateUserInput struct {
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone"`
	Password    string      `json:"password"`
	Role        Role        `json:"role"`
	Permissions Permissions `json:"permissions"`
}

type UpdatePermissionsInput struct {
	UserID      string      `json:"userId"`
	Permissions Permissions `json:"permissions"`
}

type LoginAsInput struct {
	TargetUserID string `json:"targetUserId"`
}

type OTPRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	Phone    string `json:"phone"`
}

type OTPVerification struct {
	Email      string   `json:"email"`
	Code       string   `json:"code"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	DeviceInfo string   `json:"deviceInfo"`
}

type ProfileUpdate struct {
	Code     string  `json:"code"`
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Password *string `json:"password"`
	Avatar   *string `json:"avatar"`
}

// ProfileChanges is a validated ProfileUpdate with the password already hashed.
// ClearPhone stores NULL, since phone is unique.
type ProfileChanges struct {
	Username     *string `db:"username"`
	Email        *string `db:"email"`
	Phone        *string `db:"phone"`
	ClearPhone   bool    `db:"-"`
	PasswordHash *string `db:"password_hash"`
	Avatar       *string `db:"avatar"`
}

type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
