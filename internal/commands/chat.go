package commands

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"sync"

	"skillswap/internal/app"
	"skillswap/internal/inbox"
	"skillswap/internal/models"
	"skillswap/internal/storage"
	"skillswap/internal/ws"

	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /list              show conversations
  /search <name>     filter conversations by participant name
  /open <id|name>    open a conversation
  /new <email|id>    start a conversation
  /close             close the open conversation
  /draft <text>      save composer text and signal typing
  /react <id> <emoji>
  /status            show the connection and who is online
  /quit
Anything else is sent to the open conversation.
`

func newChatCmd(env *Env) *cobra.Command {
	var open string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run the live inbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, session, err := env.session()
			if err != nil {
				return err
			}

			db, err := storage.NewBboltStorage(cfg.DraftsDB)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			a := app.New(app.Options{
				APIURL:            cfg.APIURL,
				SocketURL:         cfg.SocketURL,
				RequestTimeout:    cfg.RequestTimeout,
				ReconnectInterval: cfg.ReconnectInterval,
				TypingIdle:        cfg.TypingIdle,
				TypingDecay:       cfg.TypingDecay,
				Drafts:            db,
				Logger:            env.logger,
			})
			defer a.Close()
			a.SetSession(cmd.Context(), session)

			c := &chat{
				env:     env,
				app:     a,
				db:      db,
				selfID:  session.UserID,
				printed: make(map[string]models.MessageStatus),
				unread:  make(map[string]int),
			}
			return c.run(cmd.Context(), open)
		},
	}
	cmd.Flags().StringVarP(&open, "open", "o", "", "conversation to open on start (defaults to the last one)")
	return cmd
}

// chat is one interactive inbox session on the terminal.
type chat struct {
	env    *Env
	app    *app.App
	db     *storage.BboltStorage
	selfID string

	mu        sync.Mutex
	ib        *inbox.Inbox
	shownID   string
	printed   map[string]models.MessageStatus
	unread    map[string]int
	typing    bool
	connState ws.State
}

func (c *chat) run(ctx context.Context, open string) error {
	ib, err := c.app.OpenInbox(ctx, c.onChange)
	if ib == nil {
		return err
	}
	defer ib.Close()

	c.mu.Lock()
	c.ib = ib
	c.mu.Unlock()

	if err != nil {
		c.printf("! %s\n", c.env.describe(err))
	}
	c.listConversations("")

	if open == "" {
		last, err := c.db.LastActive(c.selfID)
		if err != nil {
			c.env.logger.Warn("failed to read last conversation", "error", err)
		}
		if last != "" {
			// A remembered conversation may be gone; that is not an error.
			if _, ok := findConversation(ib, last); !ok {
				last = ""
			}
		}
		open = last
	}
	if open != "" {
		if err := c.open(ctx, open); err != nil {
			c.printf("! %s\n", c.env.describe(err))
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.env.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := c.execute(ctx, line)
			if err != nil {
				c.printf("! %s\n", c.env.describe(err))
			}
			if quit {
				return nil
			}
		}
	}
}

func (c *chat) execute(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, c.ib.Send(ctx, line)
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit", "/q":
		return true, nil
	case "/help":
		c.printf("%s", chatHelp)
	case "/list":
		c.listConversations("")
	case "/search":
		c.listConversations(arg)
	case "/open":
		return false, c.open(ctx, arg)
	case "/new":
		conv, err := c.ib.Create(ctx, arg)
		if err != nil {
			return false, err
		}
		c.remember(conv.ID)
	case "/close":
		c.ib.Deselect()
		c.remember("")
	case "/draft":
		c.ib.Type(arg)
	case "/react":
		id, emoji, _ := strings.Cut(arg, " ")
		return false, c.ib.React(id, strings.TrimSpace(emoji))
	case "/status":
		c.status()
	default:
		return false, fmt.Errorf("unknown command %s, try /help", name)
	}
	return false, nil
}

func (c *chat) open(ctx context.Context, target string) error {
	conv, ok := findConversation(c.ib, target)
	if !ok {
		return fmt.Errorf("no conversation matches %q", target)
	}
	c.printf("-- %s (%s)\n", displayName(conv.Participant), c.app.Presence().Label(conv.Participant.ID))
	if err := c.ib.Select(ctx, conv.ID); err != nil {
		return err
	}
	c.remember(conv.ID)
	if draft := c.ib.Draft(); draft != "" {
		c.printf("draft: %s\n", draft)
	}
	return nil
}

// findConversation resolves an id, or else the first participant whose
// name contains target.
func findConversation(ib *inbox.Inbox, target string) (models.Conversation, bool) {
	if target == "" {
		return models.Conversation{}, false
	}
	for _, conv := range ib.Conversations() {
		if conv.ID == target {
			return conv, true
		}
	}
	matches := ib.Search(target)
	if len(matches) == 0 {
		return models.Conversation{}, false
	}
	return matches[0], true
}

func (c *chat) remember(conversationID string) {
	if err := c.db.SetLastActive(c.selfID, conversationID); err != nil {
		c.env.logger.Warn("failed to remember conversation", "error", err)
	}
}

func (c *chat) listConversations(search string) {
	active, _ := c.ib.Active()
	list := c.ib.Search(search)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conv := range list {
		c.unread[conv.ID] = conv.UnreadCount
	}
	printConversations(c.env.Out, list, active.ID, c.app.Presence())
}

func (c *chat) status() {
	st := c.app.Connection().Status()
	online := c.app.Presence().Online()
	switch {
	case st.Err != "":
		c.printf("connection: %s (%s)\n", st.State, st.Err)
	default:
		c.printf("connection: %s\n", st.State)
	}
	c.printf("online: %d user(s)\n", len(online))
	if c.ib.Sending() {
		c.printf("sending...\n")
	}
}

// onChange prints what changed since the last notification. It runs on the
// socket and timer goroutines, never with the inbox locked.
func (c *chat) onChange(change inbox.Change) {
	c.mu.Lock()
	ib := c.ib
	c.mu.Unlock()
	if ib == nil {
		return
	}

	switch change {
	case inbox.ChangeTimeline:
		c.printTimeline(ib)
	case inbox.ChangeConversations:
		c.printUnread(ib)
	case inbox.ChangeTyping:
		c.printTyping(ib)
	case inbox.ChangeConnection:
		c.printConnection()
	}
}

func (c *chat) printTimeline(ib *inbox.Inbox) {
	active, ok := ib.Active()
	messages := ib.Messages()
	pending := ib.Pending()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.shownID = ""
		return
	}
	if active.ID != c.shownID {
		c.shownID = active.ID
		c.printed = make(map[string]models.MessageStatus)
	}
	for _, m := range messages {
		prev, seen := c.printed[m.ID]
		switch {
		case !seen:
			printMessage(c.env.Out, m, c.selfID)
		case prev != m.Status && m.SenderID == c.selfID:
			_, _ = fmt.Fprintf(c.env.Out, "  %s (%s)\n", statusMark(m.Status), m.ID)
		}
		c.printed[m.ID] = m.Status
	}
	for _, m := range pending {
		if _, seen := c.printed[m.ID]; !seen {
			printMessage(c.env.Out, m, c.selfID)
			c.printed[m.ID] = m.Status
		}
	}
}

func (c *chat) printUnread(ib *inbox.Inbox) {
	list := ib.Conversations()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conv := range list {
		if conv.UnreadCount > c.unread[conv.ID] {
			_, _ = fmt.Fprintf(c.env.Out, "* new message from %s\n", displayName(conv.Participant))
		}
		c.unread[conv.ID] = conv.UnreadCount
	}
}

func (c *chat) printTyping(ib *inbox.Inbox) {
	active, ok := ib.Active()
	typing := ok && ib.IsTyping(active.ID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if typing && !c.typing {
		_, _ = fmt.Fprintf(c.env.Out, "%s is typing...\n", displayName(active.Participant))
	}
	c.typing = typing
}

func (c *chat) printConnection() {
	st := c.app.Connection().Status()

	c.mu.Lock()
	defer c.mu.Unlock()
	if st.State == c.connState {
		return
	}
	c.connState = st.State
	if st.Err != "" {
		_, _ = fmt.Fprintf(c.env.Out, "~ %s: %s\n", st.State, st.Err)
		return
	}
	_, _ = fmt.Fprintf(c.env.Out, "~ %s\n", st.State)
}

func (c *chat) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.env.Out, format, args...)
}
