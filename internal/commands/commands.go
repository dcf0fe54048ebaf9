// Package commands implements the operator text commands (".case", ".wl", ...) on top of the stores
// and the scan manager. It has no platform types; the transport adapts its events into a Request
// and sends each Response message as-is.
package commands

import (
	"context"
	"flagwatch/backend/internal/config"
	"flagwatch/backend/internal/localization"
	"flagwatch/backend/internal/models"
	"flagwatch/backend/internal/scanner"
	"flagwatch/backend/internal/storage"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// Prefix starts every command.
const Prefix = "."

// Request is one command invocation.
type Request struct {
	// CommunityID is empty for direct messages.
	CommunityID string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	RoleIDs     []string
	Text        string
}

// Direct reports whether the command arrived as a direct message.
func (r Request) Direct() bool { return r.CommunityID == "" }

// Response is what the transport sends back to the invoking channel.
type Response struct {
	Messages []string
	// FilePath, when set, is attached after the messages.
	FilePath string
}

func reply(msgs ...string) Response { return Response{Messages: msgs} }

// Replier delivers output produced after Handle has returned.
type Replier interface {
	Send(channelID, text string) error
	DirectMessage(userID, text string) error
}

// Names resolves display names for listings. Lookups that fail return "".
type Names interface {
	CommunityName(communityID string) string
	UserTag(ctx context.Context, userID string) string
}

// LogIndex is satisfied by *storage.MessageLog.
type LogIndex interface {
	Communities() ([]string, error)
	Resolve(folder string) (string, error)
}

// Scans is satisfied by *scanner.Manager.
type Scans interface {
	Start(kind string, userIDs []string) (*scanner.Job, error)
	Current() (*scanner.Job, bool)
	Cancel(id string) error
}

// MutualLookup is satisfied by *scanner.Scanner.
type MutualLookup interface {
	MutualCommunities(ctx context.Context, userID string) ([]models.Community, error)
	Threshold() int
}

// Deps are the collaborators of a Router. Names, Logs, Scans and Mutual may be nil;
// the commands that need them then report that nothing is available.
type Deps struct {
	Cases       storage.CaseLedger
	Watchlist   storage.SetStore
	Blacklist   storage.SetStore
	Ignored     storage.SetStore
	Suggestions storage.SetStore
	Logs        LogIndex
	Scans       Scans
	Mutual      MutualLookup
	Names       Names
	Replier     Replier
	Text        *localization.Localizer
}

type handlerFunc func(ctx context.Context, req Request, args []string) Response

type command struct {
	run       handlerFunc
	adminOnly bool
}

// Router dispatches command text to handlers.
type Router struct {
	Deps

	mainServerID string
	adminRoleID  string
	reviewerID   string
	chunkLimit   int

	commands map[string]command
	logger   *logrus.Logger
}

// NewRouter Constructor
func NewRouter(deps Deps, cfg *config.Config, logger *logrus.Logger) *Router {
	r := &Router{
		Deps:         deps,
		mainServerID: cfg.MainServerID,
		adminRoleID:  cfg.AdminRoleID,
		reviewerID:   cfg.KeywordReviewerID,
		chunkLimit:   config.ReplyChunkLimit,
		logger:       logger,
	}
	r.commands = map[string]command{
		".case":        {run: r.handleCase},
		".delcase":     {run: r.handleDeleteCase, adminOnly: true},
		".archive":     {run: r.handleArchive},
		".flagged":     {run: r.handleFlagged},
		".topflags":    {run: r.handleTopFlags},
		".wl":          {run: r.handleWatchlist},
		".bl":          {run: r.handleBlacklist},
		".flagignore":  {run: r.handleFlagIgnore, adminOnly: true},
		".mutual":      {run: r.handleMutual},
		".mutualcases": {run: r.handleMutualCases},
		".mutualwl":    {run: r.handleMutualWatchlist},
		".scanstatus":  {run: r.handleScanStatus},
		".scanstop":    {run: r.handleScanStop},
		".request":     {run: r.handleRequest},
		".info":        {run: r.handleInfo},
	}
	return r
}

// Handle runs the command in req.Text. It returns false when the text is not a command this
// router accepts from where it was sent: only ".key" is accepted in direct messages, and every
// other command only in the main community (any community when none is configured).
func (r *Router) Handle(ctx context.Context, req Request) (Response, bool) {
	fields := strings.Fields(req.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], Prefix) {
		return Response{}, false
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	if req.Direct() {
		if name != ".key" {
			return Response{}, false
		}
		return r.handleKey(ctx, req, args), true
	}
	if r.mainServerID != "" && req.CommunityID != r.mainServerID {
		return Response{}, false
	}

	cmd, ok := r.commands[name]
	if !ok {
		return Response{}, false
	}

	log := r.logger.WithFields(logrus.Fields{"command": name, "author_id": req.AuthorID, "channel_id": req.ChannelID})
	if cmd.adminOnly && !r.isAdmin(req) {
		log.Warn("Rejected admin command")
		return reply(r.Text.T("no_permission")), true
	}
	log.Debug("Running command")
	return cmd.run(ctx, req, args), true
}

func (r *Router) isAdmin(req Request) bool {
	return r.adminRoleID != "" && slices.Contains(req.RoleIDs, r.adminRoleID)
}

// chunk packs items into code-fenced messages. header opens the first message. Each item is
// kept whole unless it alone exceeds the limit.
func (r *Router) chunk(header string, items []string) []string {
	return Chunk(header, items, r.chunkLimit)
}

// Chunk splits header+items into messages whose body stays within limit characters, each
// wrapped in a code fence.
func Chunk(header string, items []string, limit int) []string {
	var out []string
	var cur strings.Builder
	cur.WriteString(header)
	curLen := utf8.RuneCountInString(header)

	for _, item := range items {
		item = truncateRunes(item, limit)
		n := utf8.RuneCountInString(item)
		if curLen > 0 && curLen+n > limit {
			out = append(out, fence(cur.String()))
			cur.Reset()
			curLen = 0
		}
		cur.WriteString(item)
		curLen += n
	}
	if curLen > 0 {
		out = append(out, fence(cur.String()))
	}
	return out
}

func fence(body string) string {
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return "```\n" + body + "```"
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "\n"
}

// lines appends a newline to every entry.
func lines(entries []string) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e + "\n"
	}
	return out
}

func (r *Router) storageError(log *logrus.Entry, err error) Response {
	log.WithError(err).Error("Command failed on storage")
	return reply(r.Text.T("storage_error"))
}

func (r *Router) handleInfo(context.Context, Request, []string) Response {
	return reply(r.Text.T("info"))
}
