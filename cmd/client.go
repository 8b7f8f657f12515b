/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quoteshare/apiserver/config"
	"github.com/quoteshare/apiserver/internal/client"
	"github.com/quoteshare/apiserver/internal/render"
	"github.com/quoteshare/apiserver/types"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Talk to a quoteshare server",
	Long: `Command line client for a quoteshare server. The server URL comes from
QUOTES_API_URL and the session token is kept in QUOTES_TOKEN_FILE.`,
}

var clientRegisterCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create an account (password is read from stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _ := newAPIClient()
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		msg, err := c.Register(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

var clientLoginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and store the session token (password is read from stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _ := newAPIClient()
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		session, err := c.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", session.Username)
		return nil
	},
}

var clientLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _ := newAPIClient()
		if err := c.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	},
}

var clientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quotes, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		pageSize, _ := cmd.Flags().GetInt("page-size")

		c, _ := newAPIClient()
		result, err := c.ListQuotes(cmd.Context(), page, pageSize)
		if err != nil {
			return err
		}
		printQuotePage(cmd.OutOrStdout(), result)
		return nil
	},
}

var clientAddCmd = &cobra.Command{
	Use:   "add <content> <author>",
	Short: "Submit a quote as the logged-in user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _ := newAPIClient()
		created, err := c.CreateQuote(cmd.Context(), args[0], args[1])
		if err != nil {
			if errors.Is(err, client.ErrNotLoggedIn) {
				return errors.New("please log in first: quoteshare client login <username>")
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added quote #%d\n", created.ID)
		return nil
	},
}

var clientShareCmd = &cobra.Command{
	Use:   "share <quote-id>",
	Short: "Save a quote's share card as PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil || id < 1 {
			return fmt.Errorf("invalid quote id %q", args[0])
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = fmt.Sprintf("quote-%d.png", id)
		}
		local, _ := cmd.Flags().GetBool("local")

		c, cfg := newAPIClient()
		var data []byte
		if local {
			opts := render.DefaultOptions()
			if cfg.ShareCard.Scale > 0 {
				opts.Scale = cfg.ShareCard.Scale
			}
			renderer, err := render.NewRendererFromFiles(cfg.ShareCard.FontPaths, opts)
			if err != nil {
				return err
			}
			data, err = c.RenderShareCard(cmd.Context(), id, renderer)
			if err != nil {
				return err
			}
		} else {
			data, err = c.ShareImage(cmd.Context(), id)
			if err != nil {
				return err
			}
		}

		if err := client.WriteImage(out, data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.AddCommand(clientRegisterCmd, clientLoginCmd, clientLogoutCmd, clientListCmd, clientAddCmd, clientShareCmd)

	clientListCmd.Flags().Int("page", 1, "page number")
	clientListCmd.Flags().Int("page-size", 10, "quotes per page (max 50)")
	clientShareCmd.Flags().StringP("out", "o", "", "output file (default quote-<id>.png)")
	clientShareCmd.Flags().Bool("local", false, "render the card locally instead of downloading it")
}

func newAPIClient() (*client.Client, config.Config) {
	cfg := config.LoadConfig()
	return client.New(cfg.Client.BaseURL, client.NewFileTokenStore(cfg.Client.TokenFile), nil), cfg
}

func readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printQuotePage(w io.Writer, page types.QuotePage) {
	for _, q := range page.Quotes {
		addedBy := "seed"
		if q.AddedBy != nil {
			addedBy = *q.AddedBy
		}
		fmt.Fprintf(w, "#%d “%s” — %s (added by %s)\n", q.ID, q.Content, q.Author, addedBy)
	}
	fmt.Fprintf(w, "page %d/%d, %d quotes total\n", page.Page, page.TotalPages, page.Total)
}
