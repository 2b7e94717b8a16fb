package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/caduceus-ai/caduceus/internal/app"
	"github.com/caduceus-ai/caduceus/internal/chat"
)

var chatTitle string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Manage conversations with the assistant",
}

var chatNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			created, err := a.Chats.CreateChat(ctx, chatTitle)
			if err != nil {
				return err
			}
			fmt.Printf("Created chat %s: %s\n", created.ID, created.Title)
			return nil
		})
	},
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recently active first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(runChatList)
	},
}

var chatShowCmd = &cobra.Command{
	Use:   "show [chat-id]",
	Short: "Show a conversation's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return runChatShow(ctx, a, args[0])
		})
	},
}

var chatSendCmd = &cobra.Command{
	Use:   "send [chat-id] [question]",
	Short: "Send a question and wait for the assistant's reply",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return runChatSend(ctx, a, args[0], joinArgs(args[1:]))
		})
	},
}

var chatDeleteCmd = &cobra.Command{
	Use:   "delete [chat-id]",
	Short: "Delete a conversation and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.Chats.DeleteChat(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted chat %s\n", args[0])
			return nil
		})
	},
}

func init() {
	chatNewCmd.Flags().StringVar(&chatTitle, "title", "", "conversation title (derived from the first question if empty)")
	chatCmd.AddCommand(chatNewCmd, chatListCmd, chatShowCmd, chatSendCmd, chatDeleteCmd)
	rootCmd.AddCommand(chatCmd)
}

func runChatList(ctx context.Context, a *app.App) error {
	chats, err := a.Chats.ListChats(ctx)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		fmt.Println("No conversations. Start one with: caduceus chat new")
		return nil
	}
	for _, c := range chats {
		fmt.Printf("%s  %-50s  %s\n", c.ID, c.Title, c.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func runChatShow(ctx context.Context, a *app.App, chatID string) error {
	c, err := a.Chats.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	fmt.Printf("%s (created %s)\n\n", c.Title, c.CreatedAt.Format(time.RFC3339))

	messages, err := a.Chats.Messages(ctx, chatID)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		printMessage(msg)
	}
	return nil
}

func runChatSend(ctx context.Context, a *app.App, chatID, question string) error {
	placeholder, err := a.Responder.Submit(ctx, chatID, question)
	if err != nil {
		return err
	}

	// Generation runs in the background; block until the reply has been
	// written so it can be printed before shutdown.
	a.Responder.Close()

	messages, err := a.Chats.Messages(ctx, chatID)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		if msg.ID == placeholder.ID {
			printMessage(msg)
			return nil
		}
	}
	return fmt.Errorf("reply %s not found", placeholder.ID)
}

func printMessage(msg *chat.Message) {
	fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
	for _, src := range msg.Sources {
		fmt.Printf("    source: [%.3f] %s (%s)\n", src.Relevance, src.Title, src.Type)
	}
	if msg.Confidence != nil {
		fmt.Printf("    confidence: %.2f\n", *msg.Confidence)
	}
	fmt.Println()
}
