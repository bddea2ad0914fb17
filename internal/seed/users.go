package seed

import (
	"context"
	"errors"
	"fmt"

	"trinetra/internal/auth"
	"trinetra/internal/utils"
	"trinetra/pkg/types"
)

// SudoAccount is the bootstrap operator. Every other account is created from
// the dashboard by an operator holding createUser.
type SudoAccount struct {
	Username string
	Email    string
	Phone    string
	Password string
}

func allPermissions() types.Permissions {
	perms := make(types.Permissions, len(types.AllPermissions))
	for _, p := range types.AllPermissions {
		perms[p] = true
	}
	return perms
}

// SeedSudo creates the SUDO account, or resets the credentials of an existing
// one with the same username.
func SeedSudo(ctx context.Context, users auth.UserRepository, acct SudoAccount) (*types.User, error) {
	if acct.Username == "" || acct.Email == "" || acct.Password == "" {
		return nil, fmt.Errorf("sudo username, email and password are required")
	}

	hash, err := auth.HashPassword(acct.Password)
	if err != nil {
		return nil, err
	}

	existing, err := users.UserByUsername(ctx, acct.Username)
	if err != nil {
		if !errors.Is(err, types.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to fetch sudo user %s: %w", acct.Username, err)
		}

		user := &types.User{
			ID:           utils.NanoID(),
			Username:     acct.Username,
			Email:        acct.Email,
			PasswordHash: hash,
			Role:         types.RoleSudo,
			Permissions:  allPermissions(),
		}
		if acct.Phone != "" {
			user.Phone = utils.StringPtr(acct.Phone)
		}

		if err := users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create sudo user %s: %w", acct.Username, err)
		}

		fmt.Printf("Sudo user created: %s\n", user.Username)
		return user, nil
	}

	if existing.Role != types.RoleSudo {
		return nil, fmt.Errorf("user %s exists and is not SUDO", acct.Username)
	}

	changes := types.ProfileChanges{
		Email:        utils.StringPtr(acct.Email),
		PasswordHash: &hash,
	}
	if acct.Phone != "" {
		changes.Phone = utils.StringPtr(acct.Phone)
	}

	if err := users.UpdateProfile(ctx, existing.ID, changes); err != nil {
		return nil, fmt.Errorf("failed to update sudo user %s: %w", acct.Username, err)
	}
	if err := users.UpdatePermissions(ctx, existing.ID, allPermissions()); err != nil {
		return nil, fmt.Errorf("failed to update sudo permissions %s: %w", acct.Username, err)
	}

	fmt.Printf("Sudo user updated: %s\n", existing.Username)
	return users.User(ctx, existing.ID)
}
