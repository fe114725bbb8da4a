package queue

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/overlord/pkg/log"
	"github.com/cuemby/overlord/pkg/metrics"
	"github.com/cuemby/overlord/pkg/types"
	"github.com/google/go-github/v66/github"
)

// GitHubScanner implements Scanner against GitHub Issues, using labels to
// represent the ready/in-progress/in-review/needs-attention states.
type GitHubScanner struct {
	client *github.Client

	watchedRepos        []string
	readyLabel          string
	inProgressLabel     string
	inReviewLabel       string
	needsAttentionLabel string

	mu        sync.Mutex
	lastScan  []types.QueueItem
	lastLimit types.RateLimit
}

// NewGitHubScanner builds a scanner authenticated with token, watching repos
// (each "owner/name") for issues carrying readyLabel.
func NewGitHubScanner(token string, watchedRepos []string, readyLabel, inProgressLabel, inReviewLabel, needsAttentionLabel string) *GitHubScanner {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubScanner{
		client:              client,
		watchedRepos:        watchedRepos,
		readyLabel:          readyLabel,
		inProgressLabel:     inProgressLabel,
		inReviewLabel:       inReviewLabel,
		needsAttentionLabel: needsAttentionLabel,
	}
}

// Scan implements Scanner.
func (s *GitHubScanner) Scan(ctx context.Context) []types.QueueItem {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.QueueScanDuration)

	var items []types.QueueItem
	now := time.Now()

	for _, repo := range s.watchedRepos {
		owner, name, err := splitRepo(repo)
		if err != nil {
			log.Logger.Warn().Err(err).Str("repo", repo).Msg("skipping malformed watched repo")
			continue
		}

		issues, _, err := s.client.Issues.ListByRepo(ctx, owner, name, &github.IssueListByRepoOptions{
			State:  "open",
			Labels: []string{s.readyLabel},
		})
		if err != nil {
			log.Logger.Warn().Err(err).Str("repo", repo).Msg("queue scan failed, treating as empty")
			metrics.QueueScanErrorsTotal.Inc()
			items = nil
			break
		}

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			if hasAnyLabel(issue.Labels, s.inProgressLabel, s.inReviewLabel) {
				continue
			}
			items = append(items, types.QueueItem{
				Repo:     repo,
				Number:   issue.GetNumber(),
				Title:    issue.GetTitle(),
				Priority: priorityOf(issue.Labels),
				Age:      now.Sub(issue.GetCreatedAt().Time),
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		return items[i].Age > items[j].Age
	})

	rate, _, err := s.client.RateLimit.Get(ctx)
	limit := types.RateLimit{}
	if err == nil && rate != nil && rate.Core != nil {
		limit = types.RateLimit{
			Remaining: rate.Core.Remaining,
			Limit:     rate.Core.Limit,
			ResetAt:   rate.Core.Reset.Time,
		}
	}

	s.mu.Lock()
	s.lastScan = items
	s.lastLimit = limit
	s.mu.Unlock()

	return items
}

// LastScan returns the most recent scan result without re-scanning, used by
// the Reporter Endpoint's /queue handler.
func (s *GitHubScanner) LastScan() []types.QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScan
}

// MarkInProgress implements Scanner.
func (s *GitHubScanner) MarkInProgress(ctx context.Context, repo string, number int) error {
	return s.relabel(ctx, repo, number, s.inProgressLabel, s.readyLabel)
}

// MarkInReview implements Scanner.
func (s *GitHubScanner) MarkInReview(ctx context.Context, repo string, number int, prNumber int) error {
	return s.relabel(ctx, repo, number, s.inReviewLabel, s.inProgressLabel)
}

// MarkFailed implements Scanner.
func (s *GitHubScanner) MarkFailed(ctx context.Context, repo string, number int, reason string) error {
	return s.relabel(ctx, repo, number, s.needsAttentionLabel, s.inProgressLabel)
}

// relabel is best-effort with a single retry, per the Queue Scanner's
// mark_* contract: failures are logged, never returned to the dispatch
// pipeline as a reason to abort.
func (s *GitHubScanner) relabel(ctx context.Context, repo string, number int, add, remove string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		_, _, addErr := s.client.Issues.AddLabelsToIssue(ctx, owner, name, number, []string{add})
		_, removeErr := s.client.Issues.RemoveLabelForIssue(ctx, owner, name, number, remove)
		if addErr == nil && (removeErr == nil || isNotFound(removeErr)) {
			return nil
		}
		lastErr = addErr
		if lastErr == nil {
			lastErr = removeErr
		}
	}

	log.Logger.Warn().Err(lastErr).Str("repo", repo).Int("issue", number).
		Str("label", add).Msg("queue label transition failed, continuing")
	return lastErr
}

// RateLimit implements Scanner.
func (s *GitHubScanner) RateLimit(ctx context.Context) types.RateLimit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLimit
}

func splitRepo(repo string) (owner, name string, err error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("queue: invalid repo %q, expected owner/name", repo)
	}
	return parts[0], parts[1], nil
}

func hasAnyLabel(labels []*github.Label, names ...string) bool {
	for _, l := range labels {
		for _, name := range names {
			if l.GetName() == name {
				return true
			}
		}
	}
	return false
}

// priorityOf reads an explicit "priority:N" label if present, defaulting to 0.
func priorityOf(labels []*github.Label) int {
	for _, l := range labels {
		name := l.GetName()
		if strings.HasPrefix(name, "priority:") {
			var p int
			if _, err := fmt.Sscanf(name, "priority:%d", &p); err == nil {
				return p
			}
		}
	}
	return 0
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if ghErr, ok := err.(*github.ErrorResponse); ok {
		return ghErr.Response != nil && ghErr.Response.StatusCode == 404
	}
	return false
}
