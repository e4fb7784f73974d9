package webhook

import (
	"fmt"
	"strconv"
	"strings"
)

// Summaries mirror the notification wording the chat channel already
// shows; changing them breaks saved searches people have built on top.

func pushSummary(p PushPayload) string {
	pusher := p.Pusher.Name
	if pusher == "" {
		pusher = "unknown"
	}
	ref := p.Ref
	if ref == "" {
		ref = "unknown ref"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-> Push event by %s to %s with %d commit(s).", pusher, ref, len(p.Commits))
	for _, c := range p.Commits {
		fmt.Fprintf(&b, "\n   - %s: %s (by %s)", shortHash(c.ID), c.Message, commitAuthor(c))
	}
	return b.String()
}

func issuesSummary(p IssuesPayload) string {
	action := p.Action
	if action == "" {
		action = "unknown action"
	}
	title := p.Issue.Title
	if title == "" {
		title = "no title"
	}
	sender := p.Sender.Login
	if sender == "" {
		sender = "unknown"
	}
	number := "unknown"
	if p.Issue.Number != 0 {
		number = strconv.Itoa(p.Issue.Number)
	}
	return fmt.Sprintf("-> Issue #%s %q %s by %s.", number, title, action, sender)
}

func starSummary(p StarPayload) string {
	sender := p.Sender.Login
	if sender == "" {
		sender = "unknown"
	}
	status := "Unstarred"
	if p.Action == "created" {
		status = "New Star"
	}
	return fmt.Sprintf("-> %s from %s! Total Stars: %d", status, sender, p.Repository.StargazersCount)
}

func watchSummary(p WatchPayload) string {
	sender := p.Sender.Login
	if sender == "" {
		sender = "unknown"
	}
	action := p.Action
	if action == "" {
		action = "unknown action"
	}
	repo := p.Repository.FullName
	if repo == "" {
		repo = "unknown"
	}
	return fmt.Sprintf("-> Repository %s was %s by %s.", repo, action, sender)
}

func shortHash(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	if id == "" {
		return "unknown"
	}
	return id
}

func commitAuthor(c Commit) string {
	if c.Author.Name == "" {
		return "unknown"
	}
	return c.Author.Name
}
