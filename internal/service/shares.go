package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dtroode/sharekeeper/internal/model"
	"github.com/dtroode/sharekeeper/internal/paginate"
	"github.com/dtroode/sharekeeper/internal/resolver"
)

// ShareLedger manages shares and keeps the users' owned and received lists
// consistent with them.
type ShareLedger struct {
	r *Registry
}

// Create issues a new share for a file of a known owner. The file must
// resolve; the resolved location is recorded. A non-positive ttl uses the
// registry default. The file is resolved under the write lock so a
// concurrent PurgeByFile either sees the new share or runs after the file
// check fails.
func (l *ShareLedger) Create(
	ctx context.Context,
	owner model.UserID,
	filePath string,
	category model.Category,
	fileName string,
	ttl time.Duration,
) (model.ShareID, error) {
	if !category.Valid() {
		return "", fmt.Errorf("unknown file category %q", category)
	}
	if ttl <= 0 {
		ttl = l.r.opts.DefaultTTL
	}

	l.r.mu.Lock()
	defer l.r.mu.Unlock()

	u, ok := l.r.users[owner]
	if !ok {
		return "", model.ErrUnknownOwner
	}

	resolved, err := l.resolveLocked(ctx, filePath, owner, category)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", filePath, err)
	}
	if fileName == "" {
		fileName = resolver.Basename(resolved)
	}

	now := l.r.now()
	share := &model.Share{
		ID:         model.NewShareID(),
		OwnerID:    owner,
		FilePath:   resolved,
		Category:   category,
		FileName:   fileName,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		AccessedBy: []model.UserID{},
	}
	l.r.shares[share.ID] = share
	u.OwnedShares = append(u.OwnedShares, share.ID)

	l.r.logger.Info("ShareLedger: share created",
		"share_id", share.ID,
		"user_id", owner,
		"path", resolved,
		"expires_at", share.ExpiresAt,
	)

	return share.ID, l.r.save(ctx)
}

// Get returns the share while it is unexpired. An expired share is removed
// and reported as ErrExpired; an absent one as ErrNotFound.
func (l *ShareLedger) Get(ctx context.Context, id model.ShareID) (model.Share, error) {
	l.r.mu.RLock()
	s, ok := l.r.shares[id]
	if !ok {
		l.r.mu.RUnlock()
		return model.Share{}, model.ErrNotFound
	}
	if !s.Expired(l.r.now()) {
		share := s.Clone()
		l.r.mu.RUnlock()
		return share, nil
	}
	l.r.mu.RUnlock()

	l.r.mu.Lock()
	defer l.r.mu.Unlock()

	s, ok = l.r.shares[id]
	if !ok {
		return model.Share{}, model.ErrNotFound
	}
	return model.Share{}, l.expireLocked(ctx, s)
}

// Access records a read of the share by requester. The file is re-validated:
// a moved file heals the recorded path, a vanished one purges the share and
// returns ErrFileGone. Non-owners get the share appended to their received
// list once.
func (l *ShareLedger) Access(ctx context.Context, id model.ShareID, requester model.UserID) (model.Share, error) {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()

	receiver, ok := l.r.users[requester]
	if !ok {
		return model.Share{}, model.ErrUnknownUser
	}

	s, ok := l.r.shares[id]
	if !ok {
		return model.Share{}, model.ErrNotFound
	}
	if s.Expired(l.r.now()) {
		return model.Share{}, l.expireLocked(ctx, s)
	}

	resolved, err := l.resolveLocked(ctx, s.FilePath, s.OwnerID, s.Category)
	if errors.Is(err, model.ErrFileNotFound) {
		l.r.logger.Info("ShareLedger: shared file is gone, purging share",
			"share_id", id,
			"path", s.FilePath,
		)
		l.r.removeShare(id)
		return model.Share{}, joinPersistence(model.ErrFileGone, l.r.save(ctx))
	}
	if err != nil {
		return model.Share{}, fmt.Errorf("failed to resolve shared file: %w", err)
	}

	if resolved != s.FilePath {
		l.r.logger.Info("ShareLedger: healed share path",
			"share_id", id,
			"from", s.FilePath,
			"to", resolved,
		)
		s.FilePath = resolved
	}

	s.AccessCount++
	s.AccessedBy = appendUnique(s.AccessedBy, requester)
	if requester != s.OwnerID {
		receiver.ReceivedShares = appendUnique(receiver.ReceivedShares, id)
	}

	return s.Clone(), l.r.save(ctx)
}

// Delete removes a share on behalf of its owner. It reports false with
// ErrNotFound or ErrUnauthorized and leaves the registry untouched when the
// share is absent or requester is not the owner.
func (l *ShareLedger) Delete(ctx context.Context, id model.ShareID, requester model.UserID) (bool, error) {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()

	s, ok := l.r.shares[id]
	if !ok {
		return false, model.ErrNotFound
	}
	if s.OwnerID != requester {
		return false, model.ErrUnauthorized
	}

	l.r.removeShare(id)
	l.r.logger.Info("ShareLedger: share deleted", "share_id", id, "user_id", requester)

	return true, l.r.save(ctx)
}

// PurgeByFile removes every share recorded at filePath, and every share with
// the same basename whose recorded path no longer exists. It returns the
// number of removed shares.
func (l *ShareLedger) PurgeByFile(ctx context.Context, filePath string) (int, error) {
	target := resolver.Clean(filePath)
	name := resolver.Basename(target)

	l.r.mu.Lock()
	defer l.r.mu.Unlock()

	removed := 0
	for id, s := range l.r.shares {
		recorded := resolver.Clean(s.FilePath)
		if recorded != target {
			if resolver.Basename(recorded) != name {
				continue
			}
			exists, err := l.existsLocked(ctx, s.FilePath)
			if err != nil {
				l.r.logger.Warn("ShareLedger: cannot check recorded path, keeping share",
					"share_id", id,
					"path", s.FilePath,
					"error", err,
				)
				continue
			}
			if exists {
				continue
			}
		}
		l.r.removeShare(id)
		removed++
	}

	if removed == 0 {
		return 0, nil
	}

	l.r.logger.Info("ShareLedger: purged shares of deleted file", "path", filePath, "count", removed)
	return removed, l.r.save(ctx)
}

func (l *ShareLedger) resolveLocked(ctx context.Context, p string, owner model.UserID, c model.Category) (string, error) {
	ctx, cancel := l.r.statContext(ctx)
	defer cancel()
	return l.r.resolver.Resolve(ctx, p, owner, c)
}

func (l *ShareLedger) existsLocked(ctx context.Context, p string) (bool, error) {
	ctx, cancel := l.r.statContext(ctx)
	defer cancel()
	return l.r.resolver.Exists(ctx, p)
}

// ListOwned returns the user's live shares in creation order.
func (l *ShareLedger) ListOwned(ctx context.Context, user model.UserID) ([]model.Share, error) {
	return l.list(ctx, user, func(u *model.User) []model.ShareID { return u.OwnedShares })
}

// ListReceived returns the live shares the user has opened, in the order
// they were first opened.
func (l *ShareLedger) ListReceived(ctx context.Context, user model.UserID) ([]model.Share, error) {
	return l.list(ctx, user, func(u *model.User) []model.ShareID { return u.ReceivedShares })
}

// PageOwned paginates ListOwned.
func (l *ShareLedger) PageOwned(ctx context.Context, user model.UserID, page, size int) ([]model.Share, int, error) {
	shares, err := l.ListOwned(ctx, user)
	if err != nil {
		return nil, 0, err
	}
	items, total := paginate.Paginate(shares, page, size)
	return items, total, nil
}

// PageReceived paginates ListReceived.
func (l *ShareLedger) PageReceived(ctx context.Context, user model.UserID, page, size int) ([]model.Share, int, error) {
	shares, err := l.ListReceived(ctx, user)
	if err != nil {
		return nil, 0, err
	}
	items, total := paginate.Paginate(shares, page, size)
	return items, total, nil
}

// list copies the selected shares under the read lock and checks their files
// afterwards. Listing never mutates the registry.
func (l *ShareLedger) list(ctx context.Context, user model.UserID, ids func(*model.User) []model.ShareID) ([]model.Share, error) {
	l.r.mu.RLock()
	u, ok := l.r.users[user]
	if !ok {
		l.r.mu.RUnlock()
		return nil, model.ErrUnknownUser
	}
	now := l.r.now()
	candidates := make([]model.Share, 0, len(ids(u)))
	for _, id := range ids(u) {
		s, ok := l.r.shares[id]
		if !ok || s.Expired(now) {
			continue
		}
		candidates = append(candidates, s.Clone())
	}
	l.r.mu.RUnlock()

	live := make([]model.Share, 0, len(candidates))
	for _, s := range candidates {
		resolved, err := l.r.resolver.Resolve(ctx, s.FilePath, s.OwnerID, s.Category)
		if err != nil {
			if !errors.Is(err, model.ErrFileNotFound) {
				l.r.logger.Warn("ShareLedger: cannot resolve listed share",
					"share_id", s.ID,
					"error", err,
				)
			}
			continue
		}
		s.FilePath = resolved
		live = append(live, s)
	}

	return live, nil
}

// expireLocked purges an expired share. Must be called with the write lock held.
func (l *ShareLedger) expireLocked(ctx context.Context, s *model.Share) error {
	l.r.logger.Info("ShareLedger: share expired", "share_id", s.ID, "expires_at", s.ExpiresAt)
	l.r.removeShare(s.ID)
	return joinPersistence(model.ErrExpired, l.r.save(ctx))
}

// joinPersistence returns cause, joined with a persistence error if any.
func joinPersistence(cause, saveErr error) error {
	if saveErr == nil {
		return cause
	}
	return errors.Join(cause, saveErr)
}
