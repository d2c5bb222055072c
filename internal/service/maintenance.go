package service

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/dtroode/sharekeeper/internal/model"
	"github.com/dtroode/sharekeeper/internal/resolver"
)

// RepairResult summarizes one RepairAll pass.
type RepairResult struct {
	// Healed counts shares whose recorded path was updated.
	Healed int
	// Copied counts legacy files copied into the per-owner layout.
	Copied int
	// Removed counts shares deleted because their file exists nowhere.
	Removed int
	// Errors counts shares left unchanged because storage could not be checked or written.
	Errors int
}

// Changed reports whether the pass mutated the registry.
func (r RepairResult) Changed() bool {
	return r.Healed > 0 || r.Removed > 0
}

// SweepExpired removes every share whose expiry is at or before now and
// returns how many were removed.
func (l *ShareLedger) SweepExpired(ctx context.Context) (int, error) {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()

	now := l.r.now()
	removed := 0
	for id, s := range l.r.shares {
		if !s.Expired(now) {
			continue
		}
		l.r.removeShare(id)
		removed++
	}

	if removed == 0 {
		return 0, nil
	}

	l.r.logger.Info("ShareLedger: swept expired shares", "count", removed)
	return removed, l.r.save(ctx)
}

type repairAction struct {
	id       model.ShareID
	observed string
	heal     string
	remove   bool
}

// RepairAll validates the file of every share. Moved files heal the recorded
// path, files found only in the legacy layout are copied into the owner's
// directory (the legacy original stays), and shares whose file exists
// nowhere are removed. Storage is checked and copied without holding the
// registry lock; a share changed concurrently is skipped. A second pass over
// unchanged storage makes no changes.
func (l *ShareLedger) RepairAll(ctx context.Context) (RepairResult, error) {
	var result RepairResult

	l.r.mu.RLock()
	shares := make([]model.Share, 0, len(l.r.shares))
	for _, s := range l.r.shares {
		shares = append(shares, s.Clone())
	}
	l.r.mu.RUnlock()

	slices.SortFunc(shares, func(a, b model.Share) int { return cmp.Compare(a.ID, b.ID) })

	actions := make([]repairAction, 0)
	for _, s := range shares {
		action, ok := l.planRepair(ctx, s, &result)
		if ok {
			actions = append(actions, action)
		}
	}

	if len(actions) == 0 {
		return result, nil
	}

	l.r.mu.Lock()
	defer l.r.mu.Unlock()

	for _, a := range actions {
		s, ok := l.r.shares[a.id]
		if !ok || s.FilePath != a.observed {
			continue
		}
		if a.remove {
			l.r.removeShare(a.id)
			result.Removed++
			l.r.logger.Info("ShareLedger: removed share without file", "share_id", a.id, "path", a.observed)
			continue
		}
		s.FilePath = a.heal
		result.Healed++
		l.r.logger.Info("ShareLedger: healed share path", "share_id", a.id, "from", a.observed, "to", a.heal)
	}

	if !result.Changed() {
		return result, nil
	}
	return result, l.r.save(ctx)
}

func (l *ShareLedger) planRepair(ctx context.Context, s model.Share, result *RepairResult) (repairAction, bool) {
	action := repairAction{id: s.ID, observed: s.FilePath}

	resolved, err := l.r.resolver.Resolve(ctx, s.FilePath, s.OwnerID, s.Category)
	if errors.Is(err, model.ErrFileNotFound) {
		action.remove = true
		return action, true
	}
	if err != nil {
		l.r.logger.Warn("ShareLedger: repair cannot resolve share", "share_id", s.ID, "error", err)
		result.Errors++
		return action, false
	}

	layout := l.r.resolver.Layout()
	if layout.IsLegacy(resolved, s.Category) {
		target := layout.CurrentPath(s.OwnerID, s.Category, resolver.Basename(resolved))
		if copied, err := l.migrateLegacy(ctx, resolved, target); err != nil {
			l.r.logger.Error("ShareLedger: failed to copy legacy file",
				"share_id", s.ID,
				"from", resolved,
				"to", target,
				"error", err,
			)
			result.Errors++
		} else {
			if copied {
				result.Copied++
			}
			resolved = target
		}
	}

	if resolved == s.FilePath {
		return action, false
	}
	action.heal = resolved
	return action, true
}

// migrateLegacy copies src to dst unless dst already exists and reports
// whether a copy was made.
func (l *ShareLedger) migrateLegacy(ctx context.Context, src, dst string) (bool, error) {
	exists, err := l.r.resolver.Exists(ctx, dst)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := l.r.blobs.Copy(ctx, src, dst); err != nil {
		return false, err
	}
	return true, nil
}
