package command

import (
	"regexp"
	"strconv"
	"strings"
)

// Type is the closed set of command kinds the parser recognises.
type Type string

const (
	Status  Type = "status"
	Work    Type = "work"
	Stop    Type = "stop"
	Queue   Type = "queue"
	Pause   Type = "pause"
	Resume  Type = "resume"
	History Type = "history"
	Help    Type = "help"
	Unknown Type = "unknown"
)

// Command is the parsed result of a chat message.
type Command struct {
	Type Type

	// Repo is an explicit "owner/name" qualifier, empty if none was given.
	Repo string

	// IssueNumber is set for WORK and issue-number STOP forms, -1 if absent.
	IssueNumber int

	// MinionID is set for minion-id STOP forms, empty if absent.
	MinionID string

	// Raw preserves the original text, shown back to the user for UNKNOWN.
	Raw string
}

var (
	repoIssueRe = regexp.MustCompile(`(?i)\b([A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+)\s*#\s*(\d+)\b`)
	issueRe     = regexp.MustCompile(`#\s*(\d+)\b`)
	minionIDRe  = regexp.MustCompile(`(?i)\bminion[-_]?([a-f0-9-]{6,})\b`)
)

// Parser parses chat text into a Command, applying defaultRepo when text
// gives an issue number without an owner/repo qualifier.
type Parser struct {
	defaultRepo string
}

// NewParser returns a Parser that falls back to defaultRepo (may be empty).
func NewParser(defaultRepo string) *Parser {
	return &Parser{defaultRepo: defaultRepo}
}

// Parse converts text into a Command. Ambiguous or unrecognised text yields
// Type Unknown with Raw set to the original text.
func (p *Parser) Parse(text string) Command {
	raw := text
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) == 0 {
		return Command{Type: Unknown, IssueNumber: -1, Raw: raw}
	}

	repo, issue, hasIssue := p.extractRepoIssue(text)

	switch {
	case fields[0] == "status" || fields[0] == "state":
		return Command{Type: Status, IssueNumber: -1, Raw: raw}

	case fields[0] == "work" || (len(fields) > 1 && fields[0] == "start" && fields[1] == "work"):
		if !hasIssue {
			return Command{Type: Work, IssueNumber: -1, Raw: raw}
		}
		return Command{Type: Work, Repo: repo, IssueNumber: issue, Raw: raw}

	case fields[0] == "stop" || fields[0] == "kill" || fields[0] == "cancel":
		if id := extractMinionID(text); id != "" {
			return Command{Type: Stop, MinionID: id, IssueNumber: -1, Raw: raw}
		}
		if hasIssue {
			return Command{Type: Stop, Repo: repo, IssueNumber: issue, Raw: raw}
		}
		return Command{Type: Stop, IssueNumber: -1, Raw: raw}

	case fields[0] == "queue" || fields[0] == "backlog":
		return Command{Type: Queue, IssueNumber: -1, Raw: raw}

	case fields[0] == "pause":
		return Command{Type: Pause, IssueNumber: -1, Raw: raw}

	case fields[0] == "resume" || fields[0] == "unpause":
		return Command{Type: Resume, IssueNumber: -1, Raw: raw}

	case fields[0] == "history" || fields[0] == "log":
		return Command{Type: History, IssueNumber: -1, Raw: raw}

	case fields[0] == "help" || fields[0] == "?":
		return Command{Type: Help, IssueNumber: -1, Raw: raw}
	}

	// Bare "#42" or "owner/repo#42" with no leading verb is treated as WORK,
	// matching the shorthand spec.md calls out explicitly.
	if hasIssue {
		return Command{Type: Work, Repo: repo, IssueNumber: issue, Raw: raw}
	}

	return Command{Type: Unknown, IssueNumber: -1, Raw: raw}
}

// extractRepoIssue looks for "owner/repo#N" first, falling back to a bare
// "#N" combined with the parser's configured default repo.
func (p *Parser) extractRepoIssue(text string) (repo string, issue int, ok bool) {
	if m := repoIssueRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return "", 0, false
		}
		return m[1], n, true
	}
	if m := issueRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return "", 0, false
		}
		return p.defaultRepo, n, true
	}
	return "", 0, false
}

func extractMinionID(text string) string {
	if m := minionIDRe.FindStringSubmatch(text); m != nil {
		return "minion-" + m[1]
	}
	return ""
}
