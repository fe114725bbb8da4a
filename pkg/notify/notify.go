package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/overlord/pkg/chat"
	"github.com/cuemby/overlord/pkg/log"
)

// Category is the closed set of digest buckets a notification may belong to.
type Category string

const (
	Detection         Category = "detection"
	ProposalCreated   Category = "proposal_created"
	ProposalApproved  Category = "proposal_approved"
	ProposalDenied    Category = "proposal_denied"
	Execution         Category = "execution"
	HealthCheck       Category = "health_check"
	TestSweep         Category = "test_sweep"
)

// maxItemsPerCategory bounds how many buffered messages per category the
// digest lists individually before collapsing the rest into a count.
const maxItemsPerCategory = 5

type bufferedItem struct {
	category Category
	message  string
}

// Stats accumulates per-category counters for the current digest window.
type Stats struct {
	Detections        int
	ProposalsCreated  int
	ProposalsApproved int
	ProposalsDenied   int
	Executions        int
	HealthChecks      int
	TestSweeps        int
}

func (s Stats) hasActivity() bool {
	return s.Detections > 0 || s.ProposalsCreated > 0 || s.Executions > 0 ||
		s.HealthChecks > 0 || s.TestSweeps > 0
}

// Manager is the Notification Manager.
type Manager struct {
	adapter       chat.Adapter
	urgentEnabled bool
	digestEnabled bool

	mu     sync.Mutex
	buffer []bufferedItem
	stats  Stats
}

// NewManager returns a Manager posting through adapter. adapter may be nil,
// in which case notifications are logged only.
func NewManager(adapter chat.Adapter, urgentEnabled, digestEnabled bool) *Manager {
	return &Manager{adapter: adapter, urgentEnabled: urgentEnabled, digestEnabled: digestEnabled}
}

// SendUrgent posts text immediately, bypassing the digest buffer entirely.
func (m *Manager) SendUrgent(ctx context.Context, text string) {
	if !m.urgentEnabled {
		log.Logger.Debug().Str("text", truncate(text, 80)).Msg("urgent notification suppressed")
		return
	}
	if m.adapter != nil {
		if _, err := m.adapter.Post(ctx, text, ""); err != nil {
			log.Logger.Warn().Err(err).Msg("failed to post urgent notification")
		}
	}
	log.Logger.Info().Str("text", truncate(text, 80)).Msg("urgent notification")
}

// Accumulate buffers text under category and increments its counter.
func (m *Manager) Accumulate(category Category, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buffer = append(m.buffer, bufferedItem{category: category, message: text})
	switch category {
	case Detection:
		m.stats.Detections++
	case ProposalCreated:
		m.stats.ProposalsCreated++
	case ProposalApproved:
		m.stats.ProposalsApproved++
	case ProposalDenied:
		m.stats.ProposalsDenied++
	case Execution:
		m.stats.Executions++
	case HealthCheck:
		m.stats.HealthChecks++
	case TestSweep:
		m.stats.TestSweeps++
	}
}

// BufferSize returns the number of buffered, not-yet-sent notifications.
func (m *Manager) BufferSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buffer)
}

// SendDigest formats and posts the accumulated digest, then clears the
// buffer and counters. A no-op if digests are disabled or nothing happened.
func (m *Manager) SendDigest(ctx context.Context) {
	if !m.digestEnabled {
		log.Logger.Debug().Msg("digest suppressed")
		return
	}

	m.mu.Lock()
	if len(m.buffer) == 0 && !m.stats.hasActivity() {
		m.mu.Unlock()
		log.Logger.Info().Msg("no activity to report in digest")
		return
	}
	buffer := m.buffer
	stats := m.stats
	m.buffer = nil
	m.stats = Stats{}
	m.mu.Unlock()

	message := formatDigest(buffer, stats)
	if m.adapter != nil {
		if _, err := m.adapter.Post(ctx, message, ""); err != nil {
			log.Logger.Warn().Err(err).Msg("failed to post digest")
		}
	}
	log.Logger.Info().Int("buffered_events", len(buffer)).Msg("digest sent")
}

func formatDigest(buffer []bufferedItem, stats Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Overlord Daily Digest — %s\n\n", time.Now().UTC().Format("Jan 02, 2006"))

	var activity []string
	if stats.Detections > 0 {
		activity = append(activity, fmt.Sprintf("%d detections", stats.Detections))
	}
	if stats.ProposalsCreated > 0 {
		activity = append(activity, fmt.Sprintf("%d proposals", stats.ProposalsCreated))
	}
	if stats.Executions > 0 {
		activity = append(activity, fmt.Sprintf("%d executed", stats.Executions))
	}
	if len(activity) > 0 {
		fmt.Fprintf(&b, "Activity: %s\n", strings.Join(activity, ", "))
	}

	var scheduled []string
	if stats.HealthChecks > 0 {
		scheduled = append(scheduled, fmt.Sprintf("%d health checks", stats.HealthChecks))
	}
	if stats.TestSweeps > 0 {
		scheduled = append(scheduled, fmt.Sprintf("%d test sweeps", stats.TestSweeps))
	}
	if len(scheduled) > 0 {
		fmt.Fprintf(&b, "Scheduled: %s\n", strings.Join(scheduled, ", "))
	}

	if len(buffer) > 0 {
		byCategory := make(map[Category][]string)
		for _, item := range buffer {
			byCategory[item.category] = append(byCategory[item.category], item.message)
		}

		categories := make([]string, 0, len(byCategory))
		for cat := range byCategory {
			categories = append(categories, string(cat))
		}
		sort.Strings(categories)

		b.WriteString("\n")
		for _, cat := range categories {
			messages := byCategory[Category(cat)]
			fmt.Fprintf(&b, "%s:\n", cat)
			start := 0
			if len(messages) > maxItemsPerCategory {
				start = len(messages) - maxItemsPerCategory
			}
			for _, msg := range messages[start:] {
				fmt.Fprintf(&b, "  - %s\n", msg)
			}
			if dropped := len(messages) - maxItemsPerCategory; dropped > 0 {
				fmt.Fprintf(&b, "  ... and %d more\n", dropped)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
