package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/askrichie/internal/adapters/driven/auth"
	"github.com/custodia-labs/askrichie/internal/core/domain"
)

var (
	tokenEmail string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token [user-id]",
	Short: "Issue a development bearer token",
	Long: `Sign a bearer token for a user id with JWT_SECRET.

Production tokens are issued by the identity provider; this is for local
development and testing against "askrichie serve".`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenTTL <= 0 {
		return errors.New("ttl must be positive")
	}
	now := time.Now()
	token, err := auth.NewAdapter(getEnv("JWT_SECRET", defaultJWTSecret)).GenerateToken(&domain.TokenClaims{
		UserID:    args[0],
		Email:     tokenEmail,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(tokenTTL).Unix(),
	})
	if err != nil {
		return err
	}
	cmd.Println(token)
	return nil
}
