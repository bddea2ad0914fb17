package auth

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"trinetra/internal/store/memstore"
	"trinetra/internal/utils"
	"trinetra/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var otpPattern = regexp.MustCompile(`Your OTP is (\d+)`)

type captureMailer struct {
	to   string
	body string
	err  error
}

func (m *captureMailer) Send(_ context.Context, to, _, body string) error {
	m.to = to
	m.body = body
	return m.err
}

func (m *captureMailer) code(t *testing.T) string {
	t.Helper()
	match := otpPattern.FindStringSubmatch(m.body)
	require.Len(t, match, 2, "mail body %q should carry an otp", m.body)
	return match[1]
}

type fixture struct {
	svc    *Service
	store  *memstore.Store
	mailer *captureMailer
	now    time.Time
	sudo   *types.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{
		store:  memstore.New(),
		mailer: &captureMailer{},
		now:    time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.store.Now = clock

	tokens := NewTokens("test-secret", time.Hour)
	tokens.now = clock

	f.svc = NewService(f.store, tokens, f.mailer, 5*time.Minute, logger)
	f.svc.now = clock

	hash, err := HashPassword("correct-horse")
	require.NoError(t, err)

	f.sudo = &types.User{
		ID:           "usr_root",
		Username:     "root",
		Email:        "root@example.com",
		Phone:        utils.StringPtr("9876543210"),
		PasswordHash: hash,
		Role:         types.RoleSudo,
	}
	require.NoError(t, f.store.CreateUser(context.Background(), f.sudo))

	return f
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	ok, err := CheckPassword(hash, "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CheckPassword("not-a-hash", "s3cret-pass")
	assert.Error(t, err)
}

func TestTokens(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	tokens := NewTokens("test-secret", time.Hour)
	tokens.now = func() time.Time { return now }

	user := &types.User{
		ID:          "usr_1",
		Username:    "meera",
		Email:       "meera@example.com",
		Role:        types.RoleAdmin,
		Permissions: types.Permissions{types.PermCreateFormAVF: true},
	}

	raw, err := tokens.Issue(user)
	require.NoError(t, err)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "usr_1", claims.UserID)
	assert.Equal(t, "meera", claims.Username)
	assert.Equal(t, types.RoleAdmin, claims.Role)
	assert.True(t, claims.Permissions[types.PermCreateFormAVF])

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokens("another-secret", time.Hour)
		other.now = tokens.now
		_, err := other.Parse(raw)
		assert.ErrorIs(t, err, types.ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokens("test-secret", time.Hour)
		later.now = func() time.Time { return now.Add(2 * time.Hour) }
		_, err := later.Parse(raw)
		assert.ErrorIs(t, err, types.ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Parse("not.a.token")
		assert.ErrorIs(t, err, types.ErrUnauthorized)
	})
}

func TestLoginWithOTP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := types.OTPRequest{
		Username: "root",
		Email:    "ROOT@example.com",
		Password: "correct-horse",
		Role:     types.RoleSudo,
		Phone:    "9876543210",
	}

	t.Run("rejects bad credentials", func(t *testing.T) {
		bad := request
		bad.Password = "nope"
		assert.ErrorIs(t, f.svc.RequestOTP(ctx, bad), types.ErrUnauthorized)

		bad = request
		bad.Role = types.RoleAdmin
		assert.ErrorIs(t, f.svc.RequestOTP(ctx, bad), types.ErrUnauthorized)

		bad = request
		bad.Phone = "9000000000"
		assert.ErrorIs(t, f.svc.RequestOTP(ctx, bad), types.ErrUnauthorized)

		bad = request
		bad.Username = "ghost"
		assert.ErrorIs(t, f.svc.RequestOTP(ctx, bad), types.ErrNotFound)
	})

	require.NoError(t, f.svc.RequestOTP(ctx, request))
	assert.Equal(t, "root@example.com", f.mailer.to)
	code := f.mailer.code(t)
	assert.Len(t, code, otpLength)

	_, err := f.svc.VerifyOTP(ctx, types.OTPVerification{Email: "root@example.com", Code: "000000x"}, "10.0.0.1")
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	session, err := f.svc.VerifyOTP(ctx, types.OTPVerification{Email: "root@example.com", Code: code, DeviceInfo: "test"}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "usr_root", session.User.ID)

	user, err := f.svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "root", user.Username)
	require.Len(t, user.Logs, 1)
	assert.Equal(t, "10.0.0.1", user.Logs[0].IP)

	// codes are single use
	_, err = f.svc.VerifyOTP(ctx, types.OTPVerification{Email: "root@example.com", Code: code}, "10.0.0.1")
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestOTPExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestOTP(ctx, types.OTPRequest{
		Username: "root",
		Email:    "root@example.com",
		Password: "correct-horse",
		Role:     types.RoleSudo,
		Phone:    "9876543210",
	}))
	code := f.mailer.code(t)

	f.now = f.now.Add(6 * time.Minute)
	_, err := f.svc.VerifyOTP(ctx, types.OTPVerification{Email: "root@example.com", Code: code}, "")

	var authErr *types.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "OTP has expired.", authErr.Message)
}

func TestMailFailureIsUpstream(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp down")

	err := f.svc.RequestOTP(context.Background(), types.OTPRequest{
		Username: "root",
		Email:    "root@example.com",
		Password: "correct-horse",
		Role:     types.RoleSudo,
		Phone:    "9876543210",
	})

	var upstream *types.UpstreamError
	assert.True(t, errors.As(err, &upstream))
}

func TestUserManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.svc.CreateUser(ctx, f.sudo, types.CreateUserInput{
		Username: "meera",
		Email:    "meera@example.com",
		Password: "password-1",
		Permissions: types.Permissions{
			types.PermCreateUser:    true,
			types.PermCreateFormAVF: true,
			"launchRockets":         true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, admin.Role)
	assert.Equal(t, "root", utils.PtrString(admin.CreatedBy))
	assert.NotContains(t, admin.Permissions, "launchRockets")

	t.Run("duplicate", func(t *testing.T) {
		_, err := f.svc.CreateUser(ctx, f.sudo, types.CreateUserInput{Username: "meera", Email: "other@example.com", Password: "password-1"})
		var conflict *types.ConflictError
		assert.True(t, errors.As(err, &conflict))
	})

	t.Run("admin cannot grant what it lacks", func(t *testing.T) {
		junior, err := f.svc.CreateUser(ctx, admin, types.CreateUserInput{
			Username: "kiran",
			Email:    "kiran@example.com",
			Password: "password-2",
			Permissions: types.Permissions{
				types.PermCreateFormAVF: true,
				types.PermCreateFormBGV: true,
			},
		})
		require.NoError(t, err)
		assert.True(t, junior.Permissions[types.PermCreateFormAVF])
		assert.NotContains(t, junior.Permissions, types.PermCreateFormBGV)

		_, err = f.svc.CreateUser(ctx, admin, types.CreateUserInput{
			Username: "boss",
			Email:    "boss@example.com",
			Password: "password-3",
			Role:     types.RoleSudo,
		})
		assert.ErrorIs(t, err, types.ErrForbidden)
	})

	t.Run("scope", func(t *testing.T) {
		scope, err := f.svc.Scope(ctx, f.sudo)
		require.NoError(t, err)
		assert.Nil(t, scope)

		scope, err = f.svc.Scope(ctx, admin)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"meera", "kiran"}, scope)
	})

	t.Run("login as", func(t *testing.T) {
		_, err := f.svc.LoginAs(ctx, admin, f.sudo.ID)
		assert.ErrorIs(t, err, types.ErrForbidden)

		session, err := f.svc.LoginAs(ctx, f.sudo, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, admin.ID, session.User.ID)
	})

	t.Run("cannot delete self", func(t *testing.T) {
		_, err := f.svc.DeleteUsers(ctx, f.sudo, []string{f.sudo.ID})
		var validation *types.ValidationError
		assert.True(t, errors.As(err, &validation))
	})

	n, err := f.svc.DeleteUsers(ctx, f.sudo, []string{admin.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.svc.Authenticate(ctx, mustIssue(t, f.svc, admin))
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func mustIssue(t *testing.T, svc *Service, u *types.User) string {
	t.Helper()
	raw, err := svc.Tokens().Issue(u)
	require.NoError(t, err)
	return raw
}

func TestUpdatePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.svc.CreateUser(ctx, f.sudo, types.CreateUserInput{
		Username:    "meera",
		Email:       "meera@example.com",
		Password:    "password-1",
		Permissions: types.Permissions{types.PermCreateFormAVF: true},
	})
	require.NoError(t, err)

	updated, err := f.svc.UpdatePermissions(ctx, f.sudo, types.UpdatePermissionsInput{
		UserID:      admin.ID,
		Permissions: types.Permissions{types.PermViewResponses: true},
	})
	require.NoError(t, err)
	assert.True(t, updated.Permissions[types.PermCreateFormAVF])
	assert.True(t, updated.Permissions[types.PermViewResponses])

	_, err = f.svc.UpdatePermissions(ctx, admin, types.UpdatePermissionsInput{UserID: f.sudo.ID, Permissions: types.Permissions{}})
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name := "superuser"

	_, err := f.svc.UpdateProfile(ctx, f.sudo, types.ProfileUpdate{Code: "123456", Username: &name})
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, f.svc.RequestProfileOTP(ctx, f.sudo))
	code := f.mailer.code(t)

	user, err := f.svc.UpdateProfile(ctx, f.sudo, types.ProfileUpdate{Code: code, Username: &name})
	require.NoError(t, err)
	assert.Equal(t, "superuser", user.Username)
	assert.Nil(t, user.OTPCode)

	avatar := "data:image/png;base64,AAAA"
	require.NoError(t, f.svc.RequestProfileOTP(ctx, f.sudo))
	_, err = f.svc.UpdateProfile(ctx, f.sudo, types.ProfileUpdate{Code: f.mailer.code(t), Avatar: &avatar})
	require.NoError(t, err)

	got, err := f.svc.Avatar(ctx, f.sudo.ID)
	require.NoError(t, err)
	assert.Equal(t, avatar, got)
}

func TestUpdateProfileClearsPhone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.svc.CreateUser(ctx, f.sudo, types.CreateUserInput{
		Username: "meera",
		Email:    "meera@example.com",
		Phone:    "9123456780",
		Password: "password-1",
	})
	require.NoError(t, err)

	empty := ""
	for _, u := range []*types.User{f.sudo, admin} {
		require.NoError(t, f.svc.RequestProfileOTP(ctx, u))

		updated, err := f.svc.UpdateProfile(ctx, u, types.ProfileUpdate{Code: f.mailer.code(t), Phone: &empty})
		require.NoError(t, err, "clearing the phone of %s", u.Username)
		assert.Nil(t, updated.Phone)
	}
}
