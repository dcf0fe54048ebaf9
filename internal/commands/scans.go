package commands

import (
	"context"
	"flagwatch/backend/internal/models"
	"flagwatch/backend/internal/scanner"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// handleMutual lists every community shared with one user.
func (r *Router) handleMutual(ctx context.Context, _ Request, args []string) Response {
	if len(args) == 0 {
		return reply(r.Text.T("mutual_usage"))
	}
	userID := args[0]
	if models.ValidateID(userID) != nil {
		return reply(r.Text.T("invalid_user_id"))
	}
	if r.Mutual == nil {
		return reply(r.Text.T("mutual_none", userID))
	}

	communities, err := r.Mutual.MutualCommunities(ctx, userID)
	if err != nil {
		r.logger.WithError(err).WithField("user_id", userID).Warn("Mutual lookup incomplete")
	}
	if len(communities) == 0 {
		return reply(r.Text.T("mutual_none", userID))
	}
	names := make([]string, len(communities))
	for i, c := range communities {
		names[i] = c.Name
	}
	msgs := r.chunk("", lines(names))
	msgs[0] = r.Text.T("mutual_header", userID, len(communities)) + "\n" + msgs[0]
	return Response{Messages: msgs}
}

func (r *Router) handleMutualCases(_ context.Context, req Request, _ []string) Response {
	ids, err := r.Cases.Authors()
	if err != nil {
		return r.storageError(r.logger.WithField("command", ".mutualcases"), err)
	}
	return r.startScan(req, scanner.KindCases, ids)
}

func (r *Router) handleMutualWatchlist(_ context.Context, req Request, _ []string) Response {
	ids, err := r.Watchlist.List()
	if err != nil {
		return r.storageError(r.logger.WithField("command", ".mutualwl"), err)
	}
	return r.startScan(req, scanner.KindWatchlist, ids)
}

// startScan launches a background scan and posts its results to the invoking channel when it ends.
func (r *Router) startScan(req Request, kind string, ids []string) Response {
	if r.Scans == nil || r.Mutual == nil {
		return reply(r.Text.T("scan_none_"+kind, 0))
	}
	threshold := r.Mutual.Threshold()
	job, err := r.Scans.Start(kind, ids)
	if errors.Is(err, scanner.ErrScanRunning) {
		return reply(r.Text.T("scan_running"))
	}
	if err != nil {
		return r.storageError(r.logger.WithField("kind", kind), err)
	}

	go r.deliverScan(req.ChannelID, job, threshold)
	return reply(r.Text.T("scan_started_"+kind, threshold, job.ID()))
}

func (r *Router) deliverScan(channelID string, job *scanner.Job, threshold int) {
	<-job.Done()
	if r.Replier == nil {
		return
	}
	log := r.logger.WithFields(logrus.Fields{"job_id": job.ID(), "channel_id": channelID})
	for _, msg := range r.scanReport(job.Status(), threshold) {
		if err := r.Replier.Send(channelID, msg); err != nil {
			log.WithError(err).Error("Failed to post scan results")
			return
		}
	}
}

// scanReport renders a finished job.
func (r *Router) scanReport(st scanner.Status, threshold int) []string {
	var out []string
	switch st.State {
	case scanner.JobFailed:
		return []string{r.Text.T("scan_failed", st.ID, st.Error)}
	case scanner.JobCancelled:
		out = append(out, r.Text.T("scan_cancelled", st.ID, st.Checked, st.Total))
	}
	if len(st.Results) == 0 {
		return append(out, r.Text.T("scan_none_"+st.Kind, threshold))
	}
	entries := make([]string, len(st.Results))
	for i, res := range st.Results {
		entries[i] = r.Text.T("scan_line", res.DisplayName, res.AuthorID, res.MutualCommunityCount)
	}
	return append(out, r.chunk(r.Text.T("scan_header_"+st.Kind, threshold)+"\n", lines(entries))...)
}

func (r *Router) handleScanStatus(context.Context, Request, []string) Response {
	if r.Scans == nil {
		return reply(r.Text.T("scan_idle"))
	}
	job, ok := r.Scans.Current()
	if !ok {
		return reply(r.Text.T("scan_idle"))
	}
	st := job.Status()
	return reply(r.Text.T("scan_status", st.ID, st.Kind, st.Checked, st.Total))
}

func (r *Router) handleScanStop(_ context.Context, req Request, _ []string) Response {
	if r.Scans == nil {
		return reply(r.Text.T("scan_idle"))
	}
	job, ok := r.Scans.Current()
	if !ok {
		return reply(r.Text.T("scan_idle"))
	}
	if err := r.Scans.Cancel(job.ID()); err != nil {
		return r.storageError(r.logger.WithField("job_id", job.ID()), err)
	}
	r.logger.WithFields(logrus.Fields{"job_id": job.ID(), "by": req.AuthorID}).Info("Scan stop requested")
	return reply(r.Text.T("scan_stopping", job.ID()))
}

// handleRequest lists the logged communities, or attaches one community's message log.
func (r *Router) handleRequest(_ context.Context, _ Request, args []string) Response {
	log := r.logger.WithField("command", ".request")
	if r.Logs == nil {
		return reply(r.Text.T("request_none"))
	}
	if len(args) == 0 {
		folders, err := r.Logs.Communities()
		if err != nil {
			return r.storageError(log, err)
		}
		if len(folders) == 0 {
			return reply(r.Text.T("request_none"))
		}
		return Response{Messages: r.chunk(r.Text.T("request_header")+"\n", lines(folders))}
	}

	folder := strings.Join(args, " ")
	path, err := r.Logs.Resolve(folder)
	if err != nil {
		log.WithError(err).WithField("folder", folder).Debug("Message log not found")
		return reply(r.Text.T("request_missing", folder))
	}
	return Response{FilePath: path}
}
