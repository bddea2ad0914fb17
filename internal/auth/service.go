package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"trinetra/internal/utils"
	"trinetra/pkg/types"

	"github.com/sirupsen/logrus"
)

const otpLength = 6

// UserRepository is the persistence the auth service needs.
type UserRepository interface {
	User(ctx context.Context, id string) (*types.User, error)
	UserByUsername(ctx context.Context, username string) (*types.User, error)
	UserByEmail(ctx context.Context, email string) (*types.User, error)
	UserExists(ctx context.Context, username, email, phone string) (bool, error)
	CreateUser(ctx context.Context, u *types.User) error
	// Users lists users created by createdBy, or every user when it is empty.
	Users(ctx context.Context, createdBy string) ([]*types.User, error)
	DeleteUsers(ctx context.Context, ids []string, createdBy string) (int64, error)
	UpdatePermissions(ctx context.Context, id string, perms types.Permissions) error
	SetOTP(ctx context.Context, id string, code *string, expiresAt *time.Time) error
	RecordLogin(ctx context.Context, id string, device types.DeviceEntry, entry types.LoginLog) error
	UpdateProfile(ctx context.Context, id string, changes types.ProfileChanges) error
}

type Service struct {
	users  UserRepository
	tokens *Tokens
	mailer Mailer
	logger *logrus.Logger
	otpTTL time.Duration
	now    func() time.Time
}

func NewService(users UserRepository, tokens *Tokens, mailer Mailer, otpTTL time.Duration, logger *logrus.Logger) *Service {
	if otpTTL <= 0 {
		otpTTL = 5 * time.Minute
	}
	return &Service{
		users:  users,
		tokens: tokens,
		mailer: mailer,
		logger: logger,
		otpTTL: otpTTL,
		now:    time.Now,
	}
}

func (s *Service) Tokens() *Tokens {
	return s.tokens
}

// Authenticate resolves a session token to the current user record, so that
// permission changes apply without a new login.
func (s *Service) Authenticate(ctx context.Context, raw string) (*types.User, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}

	user, err := s.users.User(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			return nil, types.Unauthorized("Account no longer exists.")
		}
		return nil, err
	}

	return user, nil
}

// RequestOTP checks an operator's credentials and mails a one time code.
func (s *Service) RequestOTP(ctx context.Context, in types.OTPRequest) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" || in.Role == "" {
		return types.Invalid("Username, email, password and role are required.")
	}

	user, err := s.users.UserByUsername(ctx, in.Username)
	if err != nil {
		return err
	}

	if !strings.EqualFold(user.Email, in.Email) {
		return types.Unauthorized("Email does not match.")
	}

	ok, err := CheckPassword(user.PasswordHash, in.Password)
	if err != nil {
		return err
	}
	if !ok {
		return types.Unauthorized("Invalid password.")
	}

	if user.Role != in.Role {
		return types.Unauthorized("Role does not match.")
	}

	if user.Role == types.RoleSudo && strings.TrimSpace(in.Phone) != utils.PtrString(user.Phone) {
		return types.Unauthorized("Phone number does not match.")
	}

	return s.sendOTP(ctx, user, "Your login OTP")
}

func (s *Service) sendOTP(ctx context.Context, user *types.User, subject string) error {
	code := utils.Digits(otpLength)
	expires := s.now().Add(s.otpTTL)

	if err := s.users.SetOTP(ctx, user.ID, &code, &expires); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	body := fmt.Sprintf("Your OTP is %s. It expires in %d minutes.", code, int(s.otpTTL.Minutes()))
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		return &types.UpstreamError{Service: "mail", Err: err}
	}

	s.logger.WithField("user_id", user.ID).Info("otp issued")
	return nil
}

func (s *Service) checkOTP(user *types.User, code string) error {
	if user.OTPCode == nil || user.OTPExpiresAt == nil {
		return types.Unauthorized("No OTP has been requested.")
	}
	if s.now().After(*user.OTPExpiresAt) {
		return types.Unauthorized("OTP has expired.")
	}
	if strings.TrimSpace(code) != *user.OTPCode {
		return types.Unauthorized("Invalid OTP.")
	}
	return nil
}

// VerifyOTP completes a login and returns a session.
func (s *Service) VerifyOTP(ctx context.Context, in types.OTPVerification, ip string) (*types.Session, error) {
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Code) == "" {
		return nil, types.Invalid("Email and OTP are required.")
	}

	user, err := s.users.UserByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		return nil, err
	}

	if err := s.checkOTP(user, in.Code); err != nil {
		return nil, err
	}

	now := s.now()
	device := types.DeviceEntry{
		DeviceInfo: in.DeviceInfo,
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		LoginAt:    now,
	}
	entry := types.LoginLog{Action: "login", Timestamp: now, IP: ip}

	if err := s.users.RecordLogin(ctx, user.ID, device, entry); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	return &types.Session{Token: token, User: user}, nil
}

// Scope returns the creators whose form links and reports requester may see.
// A nil result means every creator.
func (s *Service) Scope(ctx context.Context, requester *types.User) ([]string, error) {
	if requester.Role == types.RoleSudo {
		return nil, nil
	}

	created, err := s.users.Users(ctx, requester.Username)
	if err != nil {
		return nil, err
	}

	scope := make([]string, 0, len(created)+1)
	scope = append(scope, requester.Username)
	for _, u := range created {
		scope = append(scope, u.Username)
	}
	return scope, nil
}

func (s *Service) ListUsers(ctx context.Context, requester *types.User) ([]*types.User, error) {
	if !requester.Can(types.PermViewUsers) && !requester.Can(types.PermCreateUser) {
		return nil, types.ErrForbidden
	}

	if requester.Role == types.RoleSudo {
		return s.users.Users(ctx, "")
	}
	return s.users.Users(ctx, requester.Username)
}

// grantable filters perms down to what requester may hand out.
func grantable(requester *types.User, perms types.Permissions) types.Permissions {
	out := make(types.Permissions, len(perms))
	for k, v := range perms {
		if !types.KnownPermission(k) {
			continue
		}
		if requester.Role != types.RoleSudo && !requester.Permissions[k] {
			continue
		}
		out[k] = v
	}
	return out
}

func (s *Service) CreateUser(ctx context.Context, requester *types.User, in types.CreateUserInput) (*types.User, error) {
	if !requester.Can(types.PermCreateUser) {
		return nil, types.ErrForbidden
	}

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, types.Invalid("Username, email and password are required.")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, types.Invalid("Email address is not valid.")
	}
	if in.Phone != "" && !types.ValidMobile(in.Phone) {
		return nil, types.Invalid("Phone number must be a valid 10 digit number.")
	}
	if len(in.Password) < minPasswordLength {
		return nil, types.Invalid("Password must be at least %d characters.", minPasswordLength)
	}

	if in.Role == "" {
		in.Role = types.RoleAdmin
	}
	if !in.Role.Valid() {
		return nil, types.Invalid("Unknown role %q.", in.Role)
	}
	if in.Role == types.RoleSudo && requester.Role != types.RoleSudo {
		return nil, types.ErrForbidden
	}

	exists, err := s.users.UserExists(ctx, in.Username, in.Email, in.Phone)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &types.ConflictError{Message: "Username, email or phone already exists."}
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &types.User{
		ID:           utils.NanoID(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Permissions:  grantable(requester, in.Permissions),
		CreatedBy:    utils.StringPtr(requester.Username),
	}
	if in.Phone != "" {
		user.Phone = utils.StringPtr(in.Phone)
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"created_by": requester.Username,
	}).Info("user created")

	return user, nil
}

func (s *Service) DeleteUsers(ctx context.Context, requester *types.User, ids []string) (int64, error) {
	if !requester.Can(types.PermCreateUser) && !requester.Can(types.PermEditUser) {
		return 0, types.ErrForbidden
	}
	if len(ids) == 0 {
		return 0, types.Invalid("No user ids provided.")
	}

	for _, id := range ids {
		if id == requester.ID {
			return 0, types.Invalid("You cannot delete your own account.")
		}
	}

	createdBy := requester.Username
	if requester.Role == types.RoleSudo {
		createdBy = ""
	}

	return s.users.DeleteUsers(ctx, ids, createdBy)
}

// UpdatePermissions merges in the permissions requester is allowed to edit.
// Permissions requester does not hold keep their current value on the target.
func (s *Service) UpdatePermissions(ctx context.Context, requester *types.User, in types.UpdatePermissionsInput) (*types.User, error) {
	if !requester.Can(types.PermEditUser) {
		return nil, types.ErrForbidden
	}
	if in.UserID == "" || in.Permissions == nil {
		return nil, types.Invalid("userId and permissions are required.")
	}

	target, err := s.users.User(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if requester.Role != types.RoleSudo && utils.PtrString(target.CreatedBy) != requester.Username {
		return nil, types.ErrForbidden
	}

	merged := make(types.Permissions, len(target.Permissions))
	for k, v := range target.Permissions {
		merged[k] = v
	}
	for k, v := range grantable(requester, in.Permissions) {
		merged[k] = v
	}

	if err := s.users.UpdatePermissions(ctx, target.ID, merged); err != nil {
		return nil, err
	}

	target.Permissions = merged
	return target, nil
}

// LoginAs issues a session for another user. Only SUDO may do this.
func (s *Service) LoginAs(ctx context.Context, requester *types.User, targetID string) (*types.Session, error) {
	if requester.Role != types.RoleSudo {
		return nil, types.ErrForbidden
	}
	if targetID == "" {
		return nil, types.Invalid("targetUserId is required.")
	}

	target, err := s.users.User(ctx, targetID)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(target)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":   requester.ID,
		"target_id": target.ID,
	}).Warn("login as another user")

	return &types.Session{Token: token, User: target}, nil
}

func (s *Service) RequestProfileOTP(ctx context.Context, requester *types.User) error {
	return s.sendOTP(ctx, requester, "Your profile update OTP")
}

// UpdateProfile applies changes to requester's own account after checking the
// profile OTP.
func (s *Service) UpdateProfile(ctx context.Context, requester *types.User, in types.ProfileUpdate) (*types.User, error) {
	current, err := s.users.User(ctx, requester.ID)
	if err != nil {
		return nil, err
	}

	if err := s.checkOTP(current, in.Code); err != nil {
		return nil, err
	}

	var changes types.ProfileChanges

	if in.Username != nil {
		v := strings.TrimSpace(*in.Username)
		if v == "" {
			return nil, types.Invalid("Username cannot be empty.")
		}
		if v != current.Username {
			changes.Username = &v
		}
	}
	if in.Email != nil {
		v := strings.TrimSpace(*in.Email)
		if _, err := mail.ParseAddress(v); err != nil {
			return nil, types.Invalid("Email address is not valid.")
		}
		if !strings.EqualFold(v, current.Email) {
			changes.Email = &v
		}
	}
	if in.Phone != nil {
		v := strings.TrimSpace(*in.Phone)
		if v != "" && !types.ValidMobile(v) {
			return nil, types.Invalid("Phone number must be a valid 10 digit number.")
		}
		switch {
		case v == "":
			changes.ClearPhone = current.Phone != nil
		case v != utils.PtrString(current.Phone):
			changes.Phone = &v
		}
	}
	if in.Password != nil && *in.Password != "" {
		if len(*in.Password) < minPasswordLength {
			return nil, types.Invalid("Password must be at least %d characters.", minPasswordLength)
		}
		hash, err := HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		changes.PasswordHash = &hash
	}
	if in.Avatar != nil {
		changes.Avatar = in.Avatar
	}

	if changes.Username != nil || changes.Email != nil || changes.Phone != nil {
		exists, err := s.users.UserExists(ctx, utils.PtrString(changes.Username), utils.PtrString(changes.Email), utils.PtrString(changes.Phone))
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, &types.ConflictError{Message: "Username, email or phone already exists."}
		}
	}

	if err := s.users.UpdateProfile(ctx, current.ID, changes); err != nil {
		return nil, err
	}

	return s.users.User(ctx, current.ID)
}

func (s *Service) Avatar(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", types.Invalid("id is required.")
	}
	user, err := s.users.User(ctx, id)
	if err != nil {
		return "", err
	}
	return utils.PtrString(user.Avatar), nil
}
