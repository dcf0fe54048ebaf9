// Package scanner counts the communities a user shares with the observing account.
package scanner

import (
	"context"
	"flagwatch/backend/internal/config"
	"flagwatch/backend/internal/metrics"
	"flagwatch/backend/internal/models"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Directory is the external membership lookup.
type Directory interface {
	// Communities enumerates every community the observing account belongs to, in a stable order.
	Communities(ctx context.Context) ([]models.Community, error)
	// ProbeMembership reports whether userID is a member of communityID.
	ProbeMembership(ctx context.Context, communityID, userID string) (models.Member, bool, error)
}

// Options bound a scan.
type Options struct {
	Workers         int
	Threshold       int
	Timeout         time.Duration
	ProbesPerSecond float64
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Workers:         config.DefaultScanWorkers,
		Threshold:       config.DefaultScanThreshold,
		Timeout:         config.DefaultScanTimeout,
		ProbesPerSecond: config.DefaultScanProbesPerSecond,
	}
}

// Progress is reported after each user finishes.
type Progress struct {
	Checked int `json:"checked"`
	Total   int `json:"total"`
}

// Scanner issues membership probes through a bounded pool sharing one rate limiter.
type Scanner struct {
	dir     Directory
	opts    Options
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// New clamps opts into their valid ranges.
func New(dir Directory, opts Options, logger *logrus.Logger) *Scanner {
	def := DefaultOptions()
	if opts.Workers < 1 {
		opts.Workers = def.Workers
	}
	if opts.Workers > config.MaxScanWorkers {
		opts.Workers = config.MaxScanWorkers
	}
	if opts.Threshold < 1 {
		opts.Threshold = def.Threshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	limit := rate.Inf
	if opts.ProbesPerSecond > 0 {
		limit = rate.Limit(opts.ProbesPerSecond)
	}
	return &Scanner{
		dir:     dir,
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.Workers),
		logger:  logger,
	}
}

// Threshold is the early-exit count.
func (s *Scanner) Threshold() int { return s.opts.Threshold }

func (s *Scanner) probe(ctx context.Context, communityID, userID string) (models.Member, bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return models.Member{}, false, err
	}
	member, ok, err := s.dir.ProbeMembership(ctx, communityID, userID)
	switch {
	case err != nil:
		metrics.ProbesTotal.WithLabelValues("error").Inc()
	case ok:
		metrics.ProbesTotal.WithLabelValues("member").Inc()
	default:
		metrics.ProbesTotal.WithLabelValues("miss").Inc()
	}
	return member, ok, err
}

// CountMutual probes communities in order and stops as soon as the threshold is reached.
// Probe failures count as misses. The count never exceeds the threshold.
func (s *Scanner) CountMutual(ctx context.Context, userID string, communities []models.Community) models.MutualityResult {
	res := models.MutualityResult{AuthorID: userID, DisplayName: "Unknown"}
	named := false
	for _, c := range communities {
		if ctx.Err() != nil {
			break
		}
		member, ok, err := s.probe(ctx, c.ID, userID)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.WithError(err).WithFields(logrus.Fields{
				"user_id":      userID,
				"community_id": c.ID,
			}).Debug("Membership probe failed, counting as miss")
			continue
		}
		if !ok {
			continue
		}
		res.MutualCommunityCount++
		if !named && member.DisplayName != "" {
			res.DisplayName = member.DisplayName
			named = true
		}
		if res.MutualCommunityCount >= s.opts.Threshold {
			break
		}
	}
	return res
}

// ScanMutuality checks every user and returns, in input order, those meeting the threshold.
// On cancellation or timeout no new users are started, in-flight probes finish, and the
// partial results are returned with the context error.
func (s *Scanner) ScanMutuality(ctx context.Context, userIDs []string, progress func(Progress)) ([]models.MutualityResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	communities, err := s.dir.Communities(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate communities")
	}

	metrics.ScansActive.Inc()
	defer metrics.ScansActive.Dec()

	results := make([]models.MutualityResult, len(userIDs))
	var checked atomic.Int64
	total := len(userIDs)

	g := new(errgroup.Group)
	g.SetLimit(s.opts.Workers)
	for i, id := range userIDs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := models.ValidateID(id); err != nil {
				s.logger.WithField("user_id", id).Warn("Skipping invalid user ID in scan")
			} else {
				results[i] = s.CountMutual(ctx, id, communities)
			}
			n := checked.Add(1)
			metrics.ScanUsersChecked.Inc()
			if progress != nil {
				progress(Progress{Checked: int(n), Total: total})
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.MutualityResult, 0)
	for _, r := range results {
		if r.MutualCommunityCount >= s.opts.Threshold {
			out = append(out, r)
		}
	}
	return out, ctx.Err()
}

// MutualCommunities probes every community without early exit and returns those the user is in,
// in index order.
func (s *Scanner) MutualCommunities(ctx context.Context, userID string) ([]models.Community, error) {
	if err := models.ValidateID(userID); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	communities, err := s.dir.Communities(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate communities")
	}

	hits := make([]bool, len(communities))
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Workers)
	for i, c := range communities {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			_, ok, err := s.probe(ctx, c.ID, userID)
			hits[i] = err == nil && ok
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.Community, 0)
	for i, c := range communities {
		if hits[i] {
			out = append(out, c)
		}
	}
	return out, ctx.Err()
}
