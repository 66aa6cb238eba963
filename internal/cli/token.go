package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/qwsync/internal/auth"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	Secret string
	TTL    time.Duration
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for --uid",
		Long: `Mint an HS256 bearer token whose subject is --uid, signed with the
server secret. Use it as --token for client commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Secret, "secret", "", "signing secret (default server.secret from config)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime; 0 never expires")

	return cmd
}

func runToken(cmd *cobra.Command, opts *TokenOptions) error {
	f := opts.formatter(cmd)

	uid := opts.Config.Session.UID
	if uid == "" {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "token requires --uid", nil)
	}
	secret := opts.Secret
	if secret == "" {
		secret = opts.Config.Server.Secret
	}

	issuer, err := auth.NewIssuer(secret)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "token secret", err)
	}
	token, err := issuer.Issue(uid, opts.TTL)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "issue token", err)
	}
	return f.Success(map[string]string{"uid": uid, "token": token}, token)
}
