package service

import (
	"context"
	"crypto/subtle"
	"slices"

	"github.com/dtroode/sharekeeper/internal/model"
)

// UserDirectory manages user records. Verification is monotonic: once a
// user is verified nothing clears the flag.
type UserDirectory struct {
	r *Registry
}

// Register creates the user on first contact and refreshes the profile on
// later calls. Verification and share lists of an existing user are kept.
func (d *UserDirectory) Register(ctx context.Context, id model.UserID, username, displayName string) (model.User, error) {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()

	now := d.r.now()

	u, ok := d.r.users[id]
	if ok {
		u.Username = username
		u.DisplayName = displayName
		u.LastActiveAt = now
	} else {
		u = &model.User{
			ID:             id,
			Username:       username,
			DisplayName:    displayName,
			RegisteredAt:   now,
			LastActiveAt:   now,
			OwnedShares:    []model.ShareID{},
			ReceivedShares: []model.ShareID{},
		}
		d.r.users[id] = u
		d.r.logger.Info("UserDirectory: user registered", "user_id", id, "username", username)
	}

	err := d.r.save(ctx)
	return u.Clone(), err
}

// Verify marks the user verified when the presented secret matches the
// configured one or the user is a configured administrator. It reports false
// without mutating anything for unknown users and wrong secrets.
func (d *UserDirectory) Verify(ctx context.Context, id model.UserID, secret string) (bool, error) {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()

	u, ok := d.r.users[id]
	if !ok {
		return false, nil
	}
	if u.Verified {
		return true, nil
	}

	if !slices.Contains(d.r.opts.AdminIDs, id) && !d.secretMatches(secret) {
		d.r.logger.Warn("UserDirectory: verification rejected", "user_id", id)
		return false, nil
	}

	u.Verified = true
	u.LastActiveAt = d.r.now()
	d.r.logger.Info("UserDirectory: user verified", "user_id", id)

	return true, d.r.save(ctx)
}

func (d *UserDirectory) secretMatches(secret string) bool {
	want := d.r.opts.Secret
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(want)) == 1
}

// IsVerified reports whether the user exists and is verified.
func (d *UserDirectory) IsVerified(id model.UserID) bool {
	d.r.mu.RLock()
	defer d.r.mu.RUnlock()

	u, ok := d.r.users[id]
	return ok && u.Verified
}

// TouchActivity records activity for a known user; unknown users are ignored.
func (d *UserDirectory) TouchActivity(ctx context.Context, id model.UserID) error {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()

	u, ok := d.r.users[id]
	if !ok {
		return nil
	}
	u.LastActiveAt = d.r.now()

	return d.r.save(ctx)
}

// Get returns a copy of the user record.
func (d *UserDirectory) Get(id model.UserID) (model.User, error) {
	d.r.mu.RLock()
	defer d.r.mu.RUnlock()

	u, ok := d.r.users[id]
	if !ok {
		return model.User{}, model.ErrUnknownUser
	}
	return u.Clone(), nil
}
