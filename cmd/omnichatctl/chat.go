package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matheus3301/omnichat/internal/api"
	"github.com/matheus3301/omnichat/internal/domain"
	"github.com/matheus3301/omnichat/internal/normalize"
)

var (
	attachPaths []string
	replyTo     string
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List the client's contacts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			resp, err := c.Contacts(ctx, &api.ContactsRequest{ClientID: clientID})
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(resp)
			}
			for _, ct := range resp.Contacts {
				fmt.Printf("%-32s %-24s %s\n", ct.ID, ct.Name, ct.Status)
			}
			return nil
		})
	},
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List the client's conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			resp, err := c.Chats(ctx, &api.ChatsRequest{ClientID: clientID})
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(resp)
			}
			for _, ch := range resp.Chats {
				name := ch.Name
				if ch.Kind == domain.ConversationGroup && ch.MembersCount > 0 {
					name = fmt.Sprintf("%s (%d)", name, ch.MembersCount)
				}
				fmt.Printf("%-32s %-28s %s\n", ch.ID, name, normalize.Display(ch.Preview))
			}
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <contact-id>",
	Short: "Load and print a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			resp, err := c.History(ctx, &api.HistoryRequest{ClientID: clientID, ContactID: args[0]})
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(resp)
			}
			for _, m := range resp.Messages {
				printMessage(m)
			}
			if len(resp.Typing) > 0 {
				fmt.Printf("%s typing...\n", strings.Join(resp.Typing, ", "))
			}
			return nil
		})
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <contact-id> [text]",
	Short: "Send a message",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload domain.OutboundPayload
		if len(args) == 2 {
			payload.Text = args[1]
		}
		for _, p := range attachPaths {
			a, err := attachment(p)
			if err != nil {
				return err
			}
			payload.Attachments = append(payload.Attachments, a)
		}
		if strings.TrimSpace(payload.Text) == "" && len(payload.Attachments) == 0 {
			return fmt.Errorf("nothing to send")
		}

		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			if replyTo != "" {
				if err := fillReply(ctx, c, args[0], &payload); err != nil {
					return err
				}
			}
			resp, err := c.Send(ctx, &api.SendRequest{ClientID: clientID, ContactID: args[0], Payload: payload})
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(resp)
			}
			printMessage(resp.Message)
			if resp.Error != "" {
				return fmt.Errorf("send failed: %s", resp.Error)
			}
			return nil
		})
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <contact-id> <message-id> <text>",
	Short: "Edit one of your messages",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			if err := loadConversation(ctx, c, args[0]); err != nil {
				return err
			}
			resp, err := c.Edit(ctx, &api.EditRequest{ClientID: clientID, ContactID: args[0], MessageID: args[1], Content: args[2]})
			if err != nil {
				return err
			}
			return reportChange(resp, "edited")
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <contact-id> <message-id>",
	Short: "Delete a message for everyone",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			if err := loadConversation(ctx, c, args[0]); err != nil {
				return err
			}
			resp, err := c.Delete(ctx, &api.DeleteRequest{ClientID: clientID, ContactID: args[0], MessageID: args[1]})
			if err != nil {
				return err
			}
			return reportChange(resp, "deleted")
		})
	},
}

func init() {
	sendCmd.Flags().StringArrayVarP(&attachPaths, "attach", "a", nil, "file to attach (repeatable)")
	sendCmd.Flags().StringVarP(&replyTo, "reply", "r", "", "id of the message to reply to")
}

// loadConversation makes sure the daemon's timeline holds the conversation
// before a message in it is changed.
func loadConversation(ctx context.Context, c *api.Client, contactID string) error {
	_, err := c.History(ctx, &api.HistoryRequest{ClientID: clientID, ContactID: contactID})
	return err
}

func fillReply(ctx context.Context, c *api.Client, contactID string, payload *domain.OutboundPayload) error {
	payload.ReplyToMessageID = replyTo
	hist, err := c.History(ctx, &api.HistoryRequest{ClientID: clientID, ContactID: contactID})
	if err != nil {
		return err
	}
	for _, m := range hist.Messages {
		if m.ID == replyTo {
			payload.ReplyToSenderName = m.SenderName
			payload.ReplyPreviewText = normalize.Display(m.Content)
			break
		}
	}
	return nil
}

func reportChange(resp *api.ChangeResponse, verb string) error {
	if jsonOut {
		return outputJSON(resp)
	}
	if !resp.OK {
		return fmt.Errorf("message not %s", verb)
	}
	fmt.Printf("Message %s.\n", verb)
	return nil
}

// attachment describes a local file. The daemon reads it from disk.
func attachment(path string) (domain.Attachment, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.Attachment{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return domain.Attachment{}, err
	}
	if info.IsDir() {
		return domain.Attachment{}, fmt.Errorf("%s is a directory", path)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(abs))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return domain.Attachment{
		ID:        uuid.NewString(),
		Kind:      attachmentKind(mimeType),
		FileName:  filepath.Base(abs),
		MimeType:  mimeType,
		SizeBytes: info.Size(),
		FilePath:  abs,
	}, nil
}

func attachmentKind(mimeType string) domain.AttachmentKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return domain.AttachmentImage
	case strings.HasPrefix(mimeType, "video/"):
		return domain.AttachmentVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return domain.AttachmentAudio
	}
	return domain.AttachmentDocument
}

func printMessage(m domain.ChatMessage) {
	ts := time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04")
	sender := m.SenderName
	if m.From == domain.FromSelf {
		sender = normalize.SelfName
	}
	var extra []string
	for _, b := range m.Badges {
		extra = append(extra, b.Label)
	}
	if m.Status != "" {
		extra = append(extra, string(m.Status))
	}
	fmt.Printf("[%s] %s: %s", ts, sender, normalize.Display(m.Content))
	if len(extra) > 0 {
		fmt.Printf("  (%s)", strings.Join(extra, ", "))
	}
	fmt.Printf("  #%s\n", m.ID)
	if m.ReplyToMessageID != "" {
		fmt.Printf("    > %s: %s\n", m.ReplyToSenderName, m.ReplyPreviewText)
	}
}
