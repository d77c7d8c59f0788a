package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"skillswap/internal/content"
	"skillswap/internal/models"
	"skillswap/internal/presence"
)

const previewLength = 40

func printConversations(w io.Writer, conversations []models.Conversation, activeID string, tracker *presence.Tracker) {
	if len(conversations) == 0 {
		_, _ = fmt.Fprintln(w, "No conversations yet.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range conversations {
		marker := " "
		if c.ID == activeID {
			marker = "*"
		}
		status := ""
		if tracker != nil {
			status = tracker.Label(c.Participant.ID)
		}
		unread := ""
		if c.UnreadCount > 0 {
			unread = fmt.Sprintf("%d new", c.UnreadCount)
		}
		preview := "No messages yet"
		if c.LastMessage != nil {
			preview = content.Preview(c.LastMessage.Text, previewLength)
		}
		_, _ = fmt.Fprintf(tw, "%s %s\t[%s] %s\t%s\t%s\t%s\n",
			marker, c.ID, content.Initials(c.Participant.Name), displayName(c.Participant), status, unread, preview)
	}
	_ = tw.Flush()
}

func printMessage(w io.Writer, m models.Message, selfID string) {
	author := "them"
	if m.SenderID == selfID {
		author = "you"
	}
	line := fmt.Sprintf("%s %s: %s", m.CreatedAt.Local().Format("15:04"), author, content.Sanitize(m.Text))
	if m.SenderID == selfID {
		line += "  " + statusMark(m.Status)
	}
	if r := reactions(m.Reactions); r != "" {
		line += "  " + r
	}
	_, _ = fmt.Fprintf(w, "%s  (%s)\n", line, m.ID)
}

func statusMark(s models.MessageStatus) string {
	switch s {
	case models.StatusSending:
		return "sending"
	case models.StatusDelivered:
		return "delivered"
	case models.StatusRead:
		return "read"
	default:
		return "sent"
	}
}

// reactions groups a message's reactions by emoji, in order of first use.
func reactions(list []models.Reaction) string {
	if len(list) == 0 {
		return ""
	}
	counts := make(map[string]int)
	var order []string
	for _, r := range list {
		if counts[r.Emoji] == 0 {
			order = append(order, r.Emoji)
		}
		counts[r.Emoji]++
	}
	parts := make([]string, 0, len(order))
	for _, emoji := range order {
		if counts[emoji] > 1 {
			parts = append(parts, fmt.Sprintf("%s%d", emoji, counts[emoji]))
		} else {
			parts = append(parts, emoji)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func displayName(p models.Participant) string {
	if p.Name == "" {
		return "Unknown user"
	}
	return content.Sanitize(p.Name)
}
