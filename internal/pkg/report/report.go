package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gitwatch/gitwatch/app/models"
	"github.com/gitwatch/gitwatch/app/repository"
	"github.com/gitwatch/gitwatch/internal/pkg/metrics"
	"github.com/gitwatch/gitwatch/internal/pkg/webhook"
)

// DefaultWindow is the rolling period the reports look back over.
const DefaultWindow = 90 * 24 * time.Hour

// Generator produces text from a prompt. Satisfied by the Gemini client.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Service builds the weekly changelog and code audit from stored push
// events and hands them to the notifier.
type Service struct {
	Events   repository.EventRepository
	AI       Generator
	Notifier webhook.Notifier
	Window   time.Duration
	Log      *logrus.Logger
}

func NewService(events repository.EventRepository, ai Generator, notifier webhook.Notifier, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		Events:   events,
		AI:       ai,
		Notifier: notifier,
		Window:   DefaultWindow,
		Log:      log,
	}
}

// Run generates both reports and posts whichever came out non-empty.
// Nothing here is fatal: a failed report is logged and skipped.
func (s *Service) Run(ctx context.Context) {
	s.Log.Info("starting reporting suite")

	changelog, err := s.Changelog(ctx)
	switch {
	case err != nil:
		s.Log.WithError(err).Error("changelog generation failed")
	case changelog == "":
		s.Log.Info("no commits in window, skipping changelog")
	default:
		metrics.ReportsGenerated.WithLabelValues("changelog").Inc()
		s.deliver(ctx, "**Weekly Changelog**\n"+changelog)
	}

	audit, err := s.Audit(ctx)
	switch {
	case err != nil:
		s.Log.WithError(err).Error("audit generation failed")
	case audit == "":
		s.Log.Info("no commits in window, skipping audit")
	default:
		metrics.ReportsGenerated.WithLabelValues("audit").Inc()
		s.deliver(ctx, "**Weekly Code Audit**\n"+audit)
	}
}

// Changelog returns an empty string when the window holds no commits,
// which suppresses the notification.
func (s *Service) Changelog(ctx context.Context) (string, error) {
	commits, err := s.commitsInWindow()
	if err != nil {
		return "", err
	}
	if len(commits) == 0 {
		return "", nil
	}
	s.Log.Infof("analyzing %d commits for changelog", len(commits))
	return s.AI.GenerateContent(ctx, changelogPrompt(commits))
}

// Audit returns an empty string when the window holds no commits.
func (s *Service) Audit(ctx context.Context) (string, error) {
	commits, err := s.commitsInWindow()
	if err != nil {
		return "", err
	}
	if len(commits) == 0 {
		return "", nil
	}
	return s.AI.GenerateContent(ctx, auditPrompt(commits))
}

func (s *Service) deliver(ctx context.Context, message string) {
	if err := s.Notifier.Send(ctx, message); err != nil {
		s.Log.WithError(err).Error("failed to deliver report")
	}
}

// commitsInWindow flattens the commit lists of all push events in the
// rolling window, oldest first so the narrative reads chronologically.
func (s *Service) commitsInWindow() ([]webhook.Commit, error) {
	since := time.Now().Add(-s.Window)
	events, err := s.Events.GetSince(since, webhook.EventPush)
	if err != nil {
		return nil, err
	}

	var commits []webhook.Commit
	for _, ev := range events {
		commits = append(commits, parseCommits(ev)...)
	}
	return commits, nil
}

func parseCommits(ev models.GithubEvent) []webhook.Commit {
	var payload webhook.PushPayload
	if err := json.Unmarshal([]byte(ev.PayloadJSON), &payload); err != nil {
		return nil
	}
	return payload.Commits
}

func changelogPrompt(commits []webhook.Commit) string {
	var lines strings.Builder
	for _, c := range commits {
		author := c.Author.Name
		if author == "" {
			author = "unknown"
		}
		fmt.Fprintf(&lines, "- %s (by %s)\n", c.Message, author)
	}

	return fmt.Sprintf(`You are a Senior Tech Lead.
Here is a list of commit messages from this week:
%s
Write a professional but fun "Weekly Changelog" for the team.
Group into: Features, Fixes, Chores.
Use few emojis. Keep it under 200 words.`, lines.String())
}

func auditPrompt(commits []webhook.Commit) string {
	encoded, _ := json.Marshal(commits)

	return fmt.Sprintf(`You are a Strict Senior Staff Engineer.
Review these commit messages:
%s

Identify:
1. **Red Flags:** Vague messages (e.g. "fix"), rapid hotfixes, or late-night commits.
2. **Refactor Targets:** Areas of the code that seem to be "churning" (edited repeatedly).
3. **Kudos:** Any specifically complex engineering work.

Tone: Constructive but strict. Keep it short.`, encoded)
}
