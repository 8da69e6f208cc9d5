package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginEmail    string
	loginPassword string
	registerName  string
	platformFlag  string
	variantFlag   int
	exportFlag    string
	loadFlag      string
	publishAtFlag string
	keyNumberFlag string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the post service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configOverrides())
		if err != nil {
			return err
		}
		password, err := passwordOrPrompt(loginPassword)
		if err != nil {
			return err
		}
		if res := a.session.Login(cmd.Context(), loginEmail, password); !res.Success {
			return fmt.Errorf("login failed: %s", res.Error)
		}
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account on the post service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configOverrides())
		if err != nil {
			return err
		}
		password, err := passwordOrPrompt(loginPassword)
		if err != nil {
			return err
		}
		if res := a.session.Register(cmd.Context(), registerName, loginEmail, password); !res.Success {
			return fmt.Errorf("registration failed: %s", res.Error)
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configOverrides())
		if err != nil {
			return err
		}
		a.session.Logout()
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configOverrides())
		if err != nil {
			return err
		}
		printWhoami(cmd.OutOrStdout(), a.session)
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchange the refresh token for a new token pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configOverrides())
		if err != nil {
			return err
		}
		if res := a.session.Refresh(cmd.Context()); !res.Success {
			return fmt.Errorf("refresh failed: %s", res.Error)
		}
		printWhoami(cmd.OutOrStdout(), a.session)
		return nil
	},
}

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <url>",
	Short: "Generate variants of a source post for one platform",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configOverrides())
		if err != nil {
			return err
		}
		d, err := generateFor(cmd.Context(), a, args[0])
		if err != nil {
			return err
		}
		printVariants(cmd.OutOrStdout(), d)
		return exportIfRequested(cmd.OutOrStdout(), a)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit [url]",
	Short: "Open the interactive editor",
	Long: `Opens an editing shell over the per-platform drafts. --load starts from a
rewrite result saved as JSON instead of calling the rewriter.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configOverrides())
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if loadFlag != "" {
			resp, err := loadRewriteResult(loadFlag)
			if err != nil {
				return err
			}
			if err := a.editor.Hydrate(ctx, resp); err != nil {
				return err
			}
		}
		if len(args) == 1 {
			a.editor.SetSourceURL(args[0])
		}
		if platformFlag != "" {
			p, err := ParsePlatform(platformFlag)
			if err != nil {
				return err
			}
			if err := a.editor.SwitchPlatform(ctx, p); err != nil {
				return err
			}
		}

		shell := NewShell(a.editor, os.Stdin, cmd.OutOrStdout())
		shell.previewer = a.previewer
		shell.exportDir = a.config.Settings.Export.Directory
		shell.exportFormat = a.config.Settings.Export.Format
		return shell.Run(ctx)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <url>",
	Short: "Generate a Telegram draft and send it to the preview chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configOverrides())
		if err != nil {
			return err
		}
		if platformFlag == "" {
			platformFlag = string(PlatformTelegram)
		}
		variant, err := variantIndex(variantFlag)
		if err != nil {
			return err
		}
		if _, err := generateFor(cmd.Context(), a, args[0]); err != nil {
			return err
		}
		if variant > 0 {
			if err := a.editor.SelectVariant(variant); err != nil {
				return err
			}
		}
		previewer, err := a.previewer()
		if err != nil {
			return err
		}
		_, d, err := a.editor.Current()
		if err != nil {
			return err
		}
		return previewer.Preview(cmd.Context(), d)
	},
}

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Manage posts stored on the post service",
}

var newsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored posts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configOverrides())
		if err != nil {
			return err
		}
		items, err := a.client.ListNews(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, item := range items {
			status := item.Publishing
			if status == "" {
				status = "not scheduled"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", item.ID, item.Social, status, firstLine(item.About))
		}
		return nil
	},
}

var newsApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Schedule a stored post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseNewsID(args[0])
		if err != nil {
			return err
		}
		at, err := parsePublishAt(publishAtFlag)
		if err != nil {
			return err
		}
		if at.IsZero() {
			return fmt.Errorf("--at is required")
		}
		a, err := newApp(configOverrides())
		if err != nil {
			return err
		}
		return a.client.ApproveNews(cmd.Context(), id, at)
	},
}

var newsForceCmd = newsActionCmd("force <id>", "Publish a stored post now", (*APIClient).ForcePostNews)
var newsDeleteCmd = newsActionCmd("delete <id>", "Delete a stored post", (*APIClient).DeleteNews)
var newsTranslateCmd = newsActionCmd("translate <id>", "Translate a stored post", (*APIClient).TranslateNews)

func newsActionCmd(use, short string, action func(*APIClient, context.Context, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseNewsID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(configOverrides())
			if err != nil {
				return err
			}
			return action(a.client, cmd.Context(), id)
		},
	}
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage publishing keys",
}

var keysHasCmd = &cobra.Command{
	Use:   "has <platform>",
	Short: "Check whether a publishing key is stored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := ParsePlatform(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(configOverrides())
		if err != nil {
			return err
		}
		raw, err := a.client.HasKey(cmd.Context(), p.KeySocial())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return nil
	},
}

var keysAddCmd = &cobra.Command{
	Use:   "add <platform> <value>",
	Short: "Store a publishing key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := ParsePlatform(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(configOverrides())
		if err != nil {
			return err
		}
		raw, err := a.client.AddKey(cmd.Context(), p.KeySocial(), keyNumberFlag, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&loginEmail, "email", "", "Account email")
		c.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted when omitted)")
		c.MarkFlagRequired("email")
	}
	registerCmd.Flags().StringVar(&registerName, "name", "", "Display name")
	registerCmd.MarkFlagRequired("name")

	for _, c := range []*cobra.Command{rewriteCmd, editCmd, previewCmd} {
		c.Flags().StringVarP(&platformFlag, "platform", "p", "", "Target platform: vk or telegram")
	}
	rewriteCmd.Flags().StringVar(&exportFlag, "export", "", "Export the first variant as md or html")
	editCmd.Flags().StringVar(&loadFlag, "load", "", "Start from a rewrite result saved as JSON")
	previewCmd.Flags().IntVar(&variantFlag, "variant", 1, "Variant to preview, starting at 1")

	newsApproveCmd.Flags().StringVar(&publishAtFlag, "at", "", "Publishing time, RFC 3339")
	newsCmd.AddCommand(newsListCmd, newsApproveCmd, newsForceCmd, newsDeleteCmd, newsTranslateCmd)

	keysAddCmd.Flags().StringVar(&keyNumberFlag, "number", "", "Community or channel number the key belongs to")
	keysCmd.AddCommand(keysHasCmd, keysAddCmd)
}

func generateFor(ctx context.Context, a *app, sourceURL string) (PlatformDraft, error) {
	p := PlatformVK
	if platformFlag != "" {
		parsed, err := ParsePlatform(platformFlag)
		if err != nil {
			return PlatformDraft{}, err
		}
		p = parsed
	}
	if err := a.editor.SwitchPlatform(ctx, p); err != nil {
		return PlatformDraft{}, err
	}
	a.editor.SetSourceURL(sourceURL)
	return a.editor.Generate(ctx)
}

func exportIfRequested(w io.Writer, a *app) error {
	if exportFlag == "" {
		return nil
	}
	path, err := a.editor.Export(a.config.Settings.Export.Directory, exportFlag)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Exported to %s\n", path)
	return nil
}

func loadRewriteResult(path string) (*RewriteResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var resp RewriteResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &resp, nil
}

func passwordOrPrompt(password string) (string, error) {
	if password != "" {
		return password, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

// variantIndex turns the 1-based --variant flag into a variant index
func variantIndex(n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("--variant must be 1 or greater, got %d", n)
	}
	return n - 1, nil
}

func parseNewsID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid news id %q", s)
	}
	return id, nil
}

// parsePublishAt accepts RFC 3339 or "2006-01-02 15:04" in local time; empty means now
func parsePublishAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "now" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid publishing time %q: use RFC 3339 or YYYY-MM-DD HH:MM", s)
	}
	return t, nil
}

func printWhoami(w io.Writer, s *Session) {
	u := s.User()
	if u == nil {
		fmt.Fprintln(w, "Not signed in")
		return
	}
	fmt.Fprintf(w, "Signed in as %s", u.Name)
	if u.Email != "" {
		fmt.Fprintf(w, " <%s>", u.Email)
	}
	fmt.Fprintln(w)
	if exp, ok := s.TokenExpiry(); ok {
		fmt.Fprintf(w, "Access token expires %s\n", exp.Local().Format(time.RFC1123))
	}
}

func printVariants(w io.Writer, d PlatformDraft) {
	for i, v := range d.Variants {
		marker := " "
		if i == d.SelectedVariantIndex {
			marker = "*"
		}
		fmt.Fprintf(w, "%s [%d] %s\n", marker, i+1, v.Title)
		if v.VerificationFailed {
			fmt.Fprintf(w, "      ! %s\n", v.VerificationComment)
		}
	}
	fmt.Fprintf(w, "\n%s\n", d.Text)
	for i, img := range d.Images {
		fmt.Fprintf(w, "  image %d: %s\n", i+1, img)
	}
}
