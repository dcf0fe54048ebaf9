package commands

import (
	"context"
	"flagwatch/backend/internal/models"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

func (r *Router) handleWatchlist(ctx context.Context, req Request, args []string) Response {
	log := r.logger.WithFields(logrus.Fields{"command": ".wl", "by": req.AuthorID})
	action := ""
	if len(args) > 0 {
		action = strings.ToLower(args[0])
	}

	if action == "list" {
		ids, err := r.Watchlist.List()
		if err != nil {
			return r.storageError(log, err)
		}
		if len(ids) == 0 {
			return reply(r.Text.T("wl_empty"))
		}
		entries := make([]string, len(ids))
		for i, id := range ids {
			entries[i] = fmt.Sprintf("%d. %s (<@%s>)", i+1, r.userTag(ctx, id), id)
		}
		return Response{Messages: r.chunk(r.Text.T("wl_header")+"\n", lines(entries))}
	}

	if len(args) < 2 {
		return reply(r.Text.T("wl_usage"))
	}
	userID := args[1]
	if models.ValidateID(userID) != nil {
		return reply(r.Text.T("invalid_user_id"))
	}

	switch action {
	case "add":
		added, err := r.Watchlist.Add(userID)
		if err != nil {
			return r.storageError(log, err)
		}
		if !added {
			return reply(r.Text.T("wl_exists", userID))
		}
		log.WithField("user_id", userID).Info("User added to watchlist")
		return reply(r.Text.T("wl_added", userID))
	case "remove":
		removed, err := r.Watchlist.Remove(userID)
		if err != nil {
			return r.storageError(log, err)
		}
		if !removed {
			return reply(r.Text.T("wl_missing", userID))
		}
		log.WithField("user_id", userID).Info("User removed from watchlist")
		return reply(r.Text.T("wl_removed", userID))
	}
	return reply(r.Text.T("wl_invalid_action"))
}

func (r *Router) handleBlacklist(_ context.Context, req Request, args []string) Response {
	log := r.logger.WithFields(logrus.Fields{"command": ".bl", "by": req.AuthorID})
	if len(args) == 0 {
		return reply(r.Text.T("bl_usage"))
	}
	action := strings.ToLower(args[0])

	if action == "list" {
		phrases, err := r.Blacklist.List()
		if err != nil {
			return r.storageError(log, err)
		}
		if len(phrases) == 0 {
			return reply(r.Text.T("bl_empty"))
		}
		entries := make([]string, len(phrases))
		for i, p := range phrases {
			entries[i] = fmt.Sprintf("%d. %s", i+1, p)
		}
		return Response{Messages: r.chunk(r.Text.T("bl_header")+"\n", lines(entries))}
	}

	phrase := strings.ToLower(strings.Join(args[1:], " "))
	if phrase == "" {
		return reply(r.Text.T("bl_phrase_missing"))
	}

	switch action {
	case "add":
		added, err := r.Blacklist.Add(phrase)
		if err != nil {
			return r.storageError(log, err)
		}
		if !added {
			return reply(r.Text.T("bl_exists"))
		}
		log.WithField("phrase", phrase).Info("Phrase added to blacklist")
		return reply(r.Text.T("bl_added", phrase))
	case "remove":
		removed, err := r.Blacklist.Remove(phrase)
		if err != nil {
			return r.storageError(log, err)
		}
		if !removed {
			return reply(r.Text.T("bl_missing"))
		}
		log.WithField("phrase", phrase).Info("Phrase removed from blacklist")
		return reply(r.Text.T("bl_removed", phrase))
	}
	return reply(r.Text.T("bl_unknown_action"))
}

// handleFlagIgnore lists the ignored communities, or adds/removes one. The community
// defaults to the one the command was sent from.
func (r *Router) handleFlagIgnore(_ context.Context, req Request, args []string) Response {
	log := r.logger.WithFields(logrus.Fields{"command": ".flagignore", "by": req.AuthorID})
	if len(args) == 0 {
		ids, err := r.Ignored.List()
		if err != nil {
			return r.storageError(log, err)
		}
		if len(ids) == 0 {
			return reply(r.Text.T("ignore_none"))
		}
		entries := make([]string, len(ids))
		for i, id := range ids {
			entries[i] = fmt.Sprintf("%s (%s)", r.communityName(id), id)
		}
		return Response{Messages: r.chunk(r.Text.T("ignore_header")+"\n", lines(entries))}
	}

	action := strings.ToLower(args[0])
	communityID := req.CommunityID
	if len(args) > 1 {
		communityID = args[1]
	}
	if models.ValidateID(communityID) != nil {
		return reply(r.Text.T("invalid_server_id"))
	}

	switch action {
	case "add":
		added, err := r.Ignored.Add(communityID)
		if err != nil {
			return r.storageError(log, err)
		}
		if !added {
			return reply(r.Text.T("ignore_exists"))
		}
		log.WithField("community_id", communityID).Info("Community added to ignore list")
		return reply(r.Text.T("ignore_added", communityID))
	case "remove":
		removed, err := r.Ignored.Remove(communityID)
		if err != nil {
			return r.storageError(log, err)
		}
		if !removed {
			return reply(r.Text.T("ignore_missing"))
		}
		log.WithField("community_id", communityID).Info("Community removed from ignore list")
		return reply(r.Text.T("ignore_removed", communityID))
	}
	return reply(r.Text.T("ignore_usage"))
}

// handleKey records a keyword suggestion sent by direct message and tells the reviewer.
func (r *Router) handleKey(_ context.Context, req Request, args []string) Response {
	keyword := strings.ToLower(strings.Join(args, " "))
	if keyword == "" {
		return reply(r.Text.T("key_usage"))
	}

	log := r.logger.WithFields(logrus.Fields{"command": ".key", "by": req.AuthorID, "keyword": keyword})
	added, err := r.Suggestions.Add(keyword)
	if err != nil {
		log.WithError(err).Error("Failed to save keyword suggestion")
		return reply(r.Text.T("key_failed"))
	}
	if !added {
		return reply(r.Text.T("key_exists", keyword))
	}
	log.Info("Keyword suggested")

	if r.reviewerID != "" && r.Replier != nil {
		if err := r.Replier.DirectMessage(r.reviewerID, r.Text.T("key_reviewer", keyword, req.AuthorName, req.AuthorID)); err != nil {
			log.WithError(err).Warn("Failed to notify keyword reviewer")
		}
	}
	return reply(r.Text.T("key_added", keyword))
}

func (r *Router) userTag(ctx context.Context, userID string) string {
	if r.Names != nil {
		if tag := r.Names.UserTag(ctx, userID); tag != "" {
			return tag
		}
	}
	return "UnknownUser"
}

func (r *Router) communityName(communityID string) string {
	if r.Names != nil {
		if name := r.Names.CommunityName(communityID); name != "" {
			return name
		}
	}
	return "Unknown"
}
