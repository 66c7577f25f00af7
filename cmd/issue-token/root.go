package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iliyamo/docconv/internal/utils"
)

func newRootCmd() *cobra.Command {
	var (
		userID  int64
		role    string
		ttl     time.Duration
		secret  string
		envFile string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint an HS256 access token for a docconv user",
		Long: `issue-token signs a JWT whose subject is the user id and whose role is USER or
ADMIN.  The signing secret comes from --secret or JWT_SECRET (optionally read
from an env file).`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("load %s: %w", envFile, err)
				}
			}
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("no signing secret: pass --secret or set JWT_SECRET")
			}

			tok, err := utils.NewAccessToken(secret, userID, strings.ToUpper(role), ttl)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"token":      tok.Token,
					"user_id":    userID,
					"role":       strings.ToUpper(role),
					"expires_at": tok.Exp.Format(time.RFC3339),
				})
			}
			_, err = fmt.Fprintln(out, tok.Token)
			return err
		},
	}

	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "user id (required)")
	cmd.Flags().StringVarP(&role, "role", "r", utils.RoleUser, "USER or ADMIN")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to $JWT_SECRET)")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "env file to read JWT_SECRET from")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print token details as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
