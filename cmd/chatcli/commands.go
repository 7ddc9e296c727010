package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/relaychat/internal/client"
)

type rootOptions struct {
	server string
	token  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "chatcli",
		Short:         "Talk to a relaychat server from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("RELAYCHAT_SERVER", "http://localhost:8080"), "server base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("RELAYCHAT_TOKEN"), "session token (or RELAYCHAT_TOKEN)")

	cmd.AddCommand(
		newLoginCmd(opts),
		newChatsCmd(opts),
		newNewChatCmd(opts),
		newHistoryCmd(opts),
		newSendCmd(opts),
	)
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (o *rootOptions) api() (*client.HTTPClient, error) {
	if o.token == "" {
		return nil, errors.New("no token: run `chatcli login` and export RELAYCHAT_TOKEN")
	}
	return client.NewHTTPClient(o.server, o.token), nil
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := client.NewHTTPClient(opts.server, "").Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newChatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List chats, most recent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := opts.api()
			if err != nil {
				return err
			}
			chats, err := api.ListChats(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range chats {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", c.ID, c.UpdatedAt.Format("2006-01-02 15:04"), c.Title)
			}
			return nil
		},
	}
}

func newNewChatCmd(opts *rootOptions) *cobra.Command {
	var title, model string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a chat and print its id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := opts.api()
			if err != nil {
				return err
			}
			c, err := api.CreateChat(cmd.Context(), title, model)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "chat title")
	cmd.Flags().StringVar(&model, "model", "", "model id, see GET /models")
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <chat-id>",
		Short: "Print a chat's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := opts.api()
			if err != nil {
				return err
			}
			msgs, err := api.ListMessages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, m := range msgs {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n\n", m.Role, m.Content)
			}
			return nil
		},
	}
}

func newSendCmd(opts *rootOptions) *cobra.Command {
	var model string
	var web bool
	cmd := &cobra.Command{
		Use:   "send <chat-id> <message...>",
		Short: "Send a message and stream the reply",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := opts.api()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			chatID := args[0]
			history, err := api.ListMessages(ctx, chatID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			conv := client.NewConversation(api, chatID, history)
			conv.SetOptions(client.StreamOptions{ModelID: model, WebSearch: web})
			conv.OnChange(newTailPrinter(out).onChange)
			conv.OnTitle(func(t string) { fmt.Fprintf(cmd.ErrOrStderr(), "title: %s\n", t) })

			err = conv.Send(ctx, strings.Join(args[1:], " "))
			fmt.Fprintln(out)
			conv.Wait()
			return err
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "override the chat's model for this turn")
	cmd.Flags().BoolVar(&web, "web", false, "add web search results to the prompt")
	return cmd
}
