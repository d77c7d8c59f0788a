package commands

import (
	"skillswap/internal/api"
	"skillswap/internal/inbox"

	"github.com/spf13/cobra"
)

func newConversationsCmd(env *Env) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List your conversations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, session, err := env.session()
			if err != nil {
				return err
			}
			client := api.New(cfg.APIURL, session.Token, cfg.RequestTimeout)
			conversations, err := client.ListConversations(cmd.Context())
			if err != nil {
				return env.describe(err)
			}

			store := inbox.NewStore()
			store.Replace(conversations)
			printConversations(env.Out, store.Filter(search), "", nil)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only show conversations whose participant name contains this")
	return cmd
}

func newHistoryCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "history [conversation-id]",
		Short: "Print the messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, session, err := env.session()
			if err != nil {
				return err
			}
			client := api.New(cfg.APIURL, session.Token, cfg.RequestTimeout)
			messages, err := client.ListMessages(cmd.Context(), args[0])
			if err != nil {
				return env.describe(err)
			}

			timeline := inbox.NewTimeline(session.UserID)
			timeline.Reset(args[0])
			timeline.Load(messages)
			for _, m := range timeline.Messages() {
				printMessage(env.Out, m, session.UserID)
			}
			return nil
		},
	}
}
