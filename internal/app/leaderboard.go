package app

import (
	"context"
	"sort"
	"strings"
	"time"

	"bleepy-challenge-service/internal/domain"
	"github.com/sirupsen/logrus"
)

const defaultLeaderboardLimit = 10

// Leaderboard ranks users by XP earned within the query's period and filters.
func (s *ChallengeService) Leaderboard(ctx context.Context, q domain.LeaderboardQuery) ([]domain.RankedEntry, error) {
	if q.Period == "" {
		q.Period = domain.PeriodAllTime
	}
	if q.Limit == 0 {
		q.Limit = defaultLeaderboardLimit
	}
	q.Category = strings.TrimSpace(q.Category)
	if err := s.validate.Struct(q); err != nil {
		return nil, validationError(err)
	}
	q.Since = sinceFor(q.Period, s.now())

	load := func(ctx context.Context) ([]domain.LeaderboardEntry, error) {
		var entries []domain.LeaderboardEntry
		err := retryOnce(ctx, func() error {
			var err error
			entries, err = s.ledger.Leaderboard(ctx, q)
			return err
		})
		return entries, err
	}

	var (
		entries []domain.LeaderboardEntry
		err     error
	)
	if s.board != nil {
		entries, err = s.board.Leaderboard(ctx, q, load)
	} else {
		entries, err = load(ctx)
	}
	if err != nil {
		return nil, err
	}
	return rank(entries, q.Limit), nil
}

// sinceFor returns the lower bound of a rolling period; zero for all-time.
func sinceFor(p domain.Period, now time.Time) time.Time {
	w := p.Window()
	if w <= 0 {
		return time.Time{}
	}
	return now.Add(-w)
}

// rank orders entries by total desc, earliest arrival at the total, then user id.
func rank(entries []domain.LeaderboardEntry, limit int) []domain.RankedEntry {
	sorted := make([]domain.LeaderboardEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if !a.LastEarnedAt.Equal(b.LastEarnedAt) {
			return a.LastEarnedAt.Before(b.LastEarnedAt)
		}
		return a.UserID < b.UserID
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]domain.RankedEntry, len(sorted))
	for i, e := range sorted {
		out[i] = domain.RankedEntry{
			UserID:      e.UserID,
			TotalPoints: e.TotalPoints,
			Rank:        i + 1,
		}
	}
	return out
}

// ResetLeaderboard wipes the XP ledger, the per-user totals and cached boards.
func (s *ChallengeService) ResetLeaderboard(ctx context.Context, who domain.Identity) (domain.ResetSummary, error) {
	if !s.isElevated(who.Role) {
		return domain.ResetSummary{}, domain.ErrElevatedRoleNeeded
	}

	var summary domain.ResetSummary
	err := retryOnce(ctx, func() error {
		var err error
		summary, err = s.ledger.ResetLeaderboard(ctx)
		return err
	})
	if err != nil {
		return domain.ResetSummary{}, err
	}
	if s.board != nil {
		purged, err := s.board.Purge(ctx)
		if err != nil {
			s.log.WithError(err).Warn("purge leaderboard snapshots")
		}
		summary.Snapshots = purged
	}

	s.log.WithFields(logrus.Fields{
		"user_id":         who.UserID,
		"xp_transactions": summary.XPTransactions,
		"user_xp_rows":    summary.UserXPRows,
		"snapshots":       summary.Snapshots,
	}).Warn("leaderboard reset")
	return summary, nil
}

// UserXP returns the running XP total of a user; unknown users have zero.
func (s *ChallengeService) UserXP(ctx context.Context, userID string) (domain.UserXP, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.UserXP{}, domain.Invalid("user id is required")
	}
	var xp domain.UserXP
	err := retryOnce(ctx, func() error {
		var err error
		xp, err = s.ledger.UserXP(ctx, userID)
		return err
	})
	return xp, err
}

func (s *ChallengeService) isElevated(role string) bool {
	for _, r := range s.settings.ElevatedRoles {
		if strings.EqualFold(r, role) {
			return role != ""
		}
	}
	return false
}
