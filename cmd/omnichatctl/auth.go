package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/omnichat/internal/api"
	"github.com/matheus3301/omnichat/internal/domain"
)

var (
	submitType   string
	submitFields []string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate a client",
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the client's auth state and pending prompt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			resp, err := c.ListClients(ctx)
			if err != nil {
				return err
			}
			for _, cl := range resp.Clients {
				if cl.ID == clientID || (clientID == "" && cl.Active) {
					if jsonOut {
						return outputJSON(cl)
					}
					return printState(cl)
				}
			}
			if clientID == "" {
				return fmt.Errorf("no active client; use --client or open one first")
			}
			return fmt.Errorf("unknown client %q", clientID)
		})
	},
}

var authStartCmd = &cobra.Command{
	Use:   "start [qr|phone_number|pairing_code]",
	Short: "Start an auth method",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var method domain.AuthMethod
		if len(args) == 1 {
			method = domain.AuthMethod(args[0])
		}
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			resp, err := c.StartAuth(ctx, &api.StartAuthRequest{ClientID: clientID, Method: method})
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(resp)
			}
			return printState(resp.Client)
		})
	},
}

var authSubmitCmd = &cobra.Command{
	Use:   "submit [value]",
	Short: "Answer the pending auth prompt",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sub := domain.AuthSubmission{Type: domain.AuthMethod(submitType)}
		if len(args) == 1 {
			sub.Value = args[0]
		}
		if len(submitFields) > 0 {
			sub.Values = make(map[string]string, len(submitFields))
			for _, f := range submitFields {
				k, v, ok := strings.Cut(f, "=")
				if !ok {
					return fmt.Errorf("field %q: want id=value", f)
				}
				sub.Values[k] = v
			}
		}
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			resp, err := c.SubmitAuth(ctx, &api.SubmitAuthRequest{ClientID: clientID, Submission: sub})
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(resp)
			}
			return printState(resp.Client)
		})
	},
}

func init() {
	authSubmitCmd.Flags().StringVarP(&submitType, "type", "t", string(domain.MethodPhoneNumber), "submission type")
	authSubmitCmd.Flags().StringArrayVar(&submitFields, "field", nil, "text prompt field as id=value (repeatable)")
	authCmd.AddCommand(authStatusCmd, authStartCmd, authSubmitCmd)
}

// printState prints a client's auth state and renders its pending prompt.
func printState(s api.ClientState) error {
	fmt.Printf("Client: %s\nStatus: %s\n", s.ID, s.AuthStatus)
	if s.WaitingMessage != "" {
		fmt.Printf("Waiting: %s\n", s.WaitingMessage)
	}
	if s.Error != "" {
		fmt.Printf("Error: %s\n", s.Error)
	}
	prompt, err := s.Prompt()
	if err != nil || prompt == nil {
		return err
	}

	switch p := prompt.(type) {
	case domain.QRPrompt:
		fmt.Println("Scan this QR code with your phone:")
		fmt.Println(p.Value)
	case domain.OTPPrompt:
		label := p.Label
		if label == "" {
			label = "Code"
		}
		if p.InputRequired {
			fmt.Printf("%s required: omnichatctl auth submit --type otp <code>\n", label)
		} else {
			fmt.Printf("%s: %s\n", label, p.Code)
		}
		if p.ExpiresAt > 0 {
			fmt.Printf("Expires: %s\n", time.UnixMilli(p.ExpiresAt).Format(time.Kitchen))
		}
	case domain.PhoneNumberPrompt:
		fmt.Printf("%s: omnichatctl auth submit <number>\n", firstNonEmpty(p.Label, "Phone number"))
	case domain.TokenPrompt:
		fmt.Printf("%s: omnichatctl auth submit --type token <token>\n", firstNonEmpty(p.Label, "Token"))
	case domain.TextPrompt:
		fmt.Println(firstNonEmpty(p.Title, "Fields required:"))
		for _, f := range p.Fields {
			req := ""
			if f.Required {
				req = " (required)"
			}
			fmt.Printf("  --field %s=<%s>%s\n", f.ID, f.Label, req)
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
