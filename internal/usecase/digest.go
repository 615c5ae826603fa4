package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"standup-bot/internal/domain"
	"standup-bot/internal/integrations/slackapi"
)

// MessagePoster is the Slack surface needed by the digest run.
type MessagePoster interface {
	PostMessage(ctx context.Context, channelID, text string, blocks []slackapi.Block) error
}

// SubmissionRangeReader is the store surface needed by the digest run.
type SubmissionRangeReader interface {
	QueryRange(ctx context.Context, startTS, endTS string) ([]domain.Submission, error)
}

// Digest aggregates a day's submissions into one channel post.
type Digest struct {
	store     SubmissionRangeReader
	slack     MessagePoster
	channelID string
	loc       *time.Location

	now func() time.Time
}

// DigestReport summarizes one run for logging.
type DigestReport struct {
	DayLabel string
	Count    int
	Users    int
}

// NewDigest creates the aggregator posting to channelID, with day boundaries
// taken from loc.
func NewDigest(store SubmissionRangeReader, slack MessagePoster, channelID string, loc *time.Location) (*Digest, error) {
	if store == nil {
		return nil, errors.New("usecase: submission store must not be nil")
	}
	if slack == nil {
		return nil, errors.New("usecase: slack client must not be nil")
	}
	if strings.TrimSpace(channelID) == "" {
		return nil, errors.New("usecase: channel id must not be empty")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Digest{
		store:     store,
		slack:     slack,
		channelID: channelID,
		loc:       loc,
		now:       time.Now,
	}, nil
}

// Run reads every submission from local midnight to now and posts the
// digest. A post failure fails the whole run; the next scheduled run is
// independent and does not compensate.
func (d *Digest) Run(ctx context.Context) (DigestReport, error) {
	label, startTS, endTS := dayWindow(d.now(), d.loc)
	slog.Info("digest window", "label", label, "start", startTS, "end", endTS)

	subs, err := d.store.QueryRange(ctx, startTS, endTS)
	if err != nil {
		return DigestReport{}, newError(ErrorUpstream, "store_read_error", err)
	}

	groups := groupByUser(subs)
	blocks := digestBlocks(label, groups)
	if err := d.slack.PostMessage(ctx, d.channelID, "Daily standup digest", blocks); err != nil {
		return DigestReport{}, newError(ErrorUpstream, "post_error", err)
	}

	return DigestReport{DayLabel: label, Count: len(subs), Users: len(groups)}, nil
}

// dayWindow returns the digest window for the instant now: today in loc,
// local midnight up to now, as UTC sort-key bounds plus a friendly label.
// Deterministic given loc regardless of the host zone.
func dayWindow(now time.Time, loc *time.Location) (label, startTS, endTS string) {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return local.Format("Monday, Jan 2"),
		midnight.UTC().Format(tsLayout),
		now.UTC().Format(tsLayout)
}

// userDigest is one user's submissions within the window, chronological.
type userDigest struct {
	UserID   string
	UserName string
	Entries  []domain.Submission
}

// groupByUser buckets submissions by user. Input is ts-ordered, so entries
// within a bucket stay chronological; buckets are ordered by user name then
// id for a stable digest layout.
func groupByUser(subs []domain.Submission) []userDigest {
	index := make(map[string]int)
	var groups []userDigest
	for _, sub := range subs {
		i, ok := index[sub.UserID]
		if !ok {
			i = len(groups)
			index[sub.UserID] = i
			groups = append(groups, userDigest{UserID: sub.UserID, UserName: sub.UserName})
		}
		groups[i].Entries = append(groups[i].Entries, sub)
		if groups[i].UserName == "" {
			groups[i].UserName = sub.UserName
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].UserName != groups[j].UserName {
			return groups[i].UserName < groups[j].UserName
		}
		return groups[i].UserID < groups[j].UserID
	})
	return groups
}

// digestBlocks renders the Block Kit digest: header, divider, one section
// per user. Users with no submissions in the window are simply absent; an
// empty window still produces an explicit no-updates post so a silent
// schedule failure is distinguishable from a quiet day.
func digestBlocks(label string, groups []userDigest) []slackapi.Block {
	if len(groups) == 0 {
		return []slackapi.Block{
			slackapi.SectionBlock(fmt.Sprintf("*Standups for %s*\n_No updates were received._", label)),
		}
	}

	blocks := []slackapi.Block{
		slackapi.SectionBlock(fmt.Sprintf("*Standups for %s*", label)),
		slackapi.DividerBlock(),
	}
	for _, g := range groups {
		lines := make([]string, 0, len(g.Entries))
		for _, e := range g.Entries {
			lines = append(lines, "• "+e.Text)
		}
		blocks = append(blocks, slackapi.SectionBlock(
			fmt.Sprintf("*<@%s>*\n%s", g.UserID, strings.Join(lines, "\n")),
		))
	}
	return blocks
}
