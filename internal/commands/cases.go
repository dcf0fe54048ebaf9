package commands

import (
	"context"
	"flagwatch/backend/internal/config"
	"flagwatch/backend/internal/models"
	"flagwatch/backend/internal/storage"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// ParseCaseFilter reads the case flags (--hi, --match, --limit, ...). Unknown tokens are ignored.
func ParseCaseFilter(args []string) (storage.Filter, error) {
	var f storage.Filter
	for i := 0; i < len(args); i++ {
		switch strings.ToLower(args[i]) {
		case "--hi":
			f.Risk = models.RiskHigh
		case "--med":
			f.Risk = models.RiskMedium
		case "--low":
			f.Risk = models.RiskLow
		case "--match":
			if i+1 < len(args) {
				i++
				f.Match = args[i]
			}
		case "--limit":
			if i+1 >= len(args) {
				return f, errors.New("--limit needs a number")
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 1 {
				return f, errors.Newf("--limit %s is not a positive number", args[i])
			}
			f.Limit = n
		case "--after", "--before":
			flag := strings.ToLower(args[i])
			if i+1 >= len(args) {
				return f, errors.Newf("%s needs a date (YYYY-MM-DD)", flag)
			}
			i++
			d, err := time.Parse(dateLayout, args[i])
			if err != nil {
				return f, errors.Newf("%s %s is not a YYYY-MM-DD date", flag, args[i])
			}
			if flag == "--after" {
				f.After = d
			} else {
				f.Before = d
			}
		}
	}
	return f, nil
}

// FormatCaseEntry renders one event as shown by ".case".
func FormatCaseEntry(ev models.ClassifiedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** in **%s**\n", ev.AuthorDisplayName, ev.CommunityName)
	b.WriteString(ev.Content + "\n")
	fmt.Fprintf(&b, "Matched: %s\n", strings.Join(ev.MatchedTerms, ", "))
	fmt.Fprintf(&b, "Risk: %s\n", strings.ToUpper(ev.Risk.String()))
	fmt.Fprintf(&b, "<t:%d:F>\n", ev.Timestamp.Unix())
	b.WriteString(ev.Link + "\n\n")
	return b.String()
}

func (r *Router) handleCase(_ context.Context, req Request, args []string) Response {
	if len(args) == 0 {
		return reply(r.Text.T("case_usage"))
	}
	authorID := args[0]
	if models.ValidateID(authorID) != nil {
		return reply(r.Text.T("invalid_user_id"))
	}
	filter, err := ParseCaseFilter(args[1:])
	if err != nil {
		return reply(r.Text.T("case_bad_filter", err.Error()))
	}

	log := r.logger.WithFields(logrus.Fields{"command": ".case", "author_id": authorID})
	events, archived, err := r.Cases.Lookup(authorID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return reply(r.Text.T("case_not_found"))
	case err != nil:
		return r.storageError(log, err)
	}
	if len(events) == 0 {
		return reply(r.Text.T("case_empty"))
	}

	events = filter.Apply(events)
	if len(events) == 0 {
		return reply(r.Text.T("case_no_matches"))
	}

	entries := make([]string, len(events))
	for i, ev := range events {
		entries[i] = FormatCaseEntry(ev)
	}
	header := ""
	if archived {
		header = r.Text.T("case_archived", authorID) + "\n\n"
	}
	return Response{Messages: r.chunk(header, entries)}
}

func (r *Router) handleDeleteCase(_ context.Context, req Request, args []string) Response {
	if len(args) != 1 {
		return reply(r.Text.T("delcase_usage"))
	}
	authorID := args[0]
	if models.ValidateID(authorID) != nil {
		return reply(r.Text.T("invalid_user_id"))
	}

	log := r.logger.WithFields(logrus.Fields{"command": ".delcase", "author_id": authorID, "by": req.AuthorID})
	err := r.Cases.Delete(authorID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return reply(r.Text.T("delcase_missing", authorID))
	case err != nil:
		log.WithError(err).Error("Failed to delete case")
		return reply(r.Text.T("delcase_failed"))
	}
	log.Info("Case deleted")
	return reply(r.Text.T("delcase_done", authorID))
}

func (r *Router) handleArchive(_ context.Context, req Request, args []string) Response {
	if len(args) != 1 {
		return reply(r.Text.T("archive_usage"))
	}
	authorID := args[0]
	if models.ValidateID(authorID) != nil {
		return reply(r.Text.T("invalid_user_id"))
	}

	log := r.logger.WithFields(logrus.Fields{"command": ".archive", "author_id": authorID, "by": req.AuthorID})
	err := r.Cases.Archive(authorID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return reply(r.Text.T("archive_missing", authorID))
	case err != nil:
		log.WithError(err).Error("Failed to archive case")
		return reply(r.Text.T("archive_failed"))
	}
	log.Info("Case archived")
	return reply(r.Text.T("archive_done", authorID))
}

func (r *Router) handleFlagged(context.Context, Request, []string) Response {
	summaries, err := r.Cases.Summaries(false)
	if err != nil {
		return r.storageError(r.logger.WithField("command", ".flagged"), err)
	}
	if len(summaries) == 0 {
		return reply(r.Text.T("flagged_none"))
	}
	entries := make([]string, len(summaries))
	for i, s := range summaries {
		entries[i] = fmt.Sprintf("%s (%s)", s.DisplayName, s.AuthorID)
	}
	return Response{Messages: r.chunk(r.Text.T("flagged_header")+"\n", lines(entries))}
}

func (r *Router) handleTopFlags(context.Context, Request, []string) Response {
	summaries, err := r.Cases.Summaries(false)
	if err != nil {
		return r.storageError(r.logger.WithField("command", ".topflags"), err)
	}
	top := storage.TopByCount(summaries, config.TopFlagsLimit)
	if len(top) == 0 {
		return reply(r.Text.T("topflags_none"))
	}
	entries := make([]string, len(top))
	for i, s := range top {
		entries[i] = fmt.Sprintf("#%d: %s (<@%s>) - %d flags", i+1, s.DisplayName, s.AuthorID, s.Count)
	}
	return Response{Messages: r.chunk(r.Text.T("topflags_header", config.TopFlagsLimit)+"\n", lines(entries))}
}
