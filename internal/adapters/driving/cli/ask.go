package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

var (
	askJSON  bool
	askURL   string
	askToken string
)

// askAnswerer is replaced in tests
var askAnswerer = func(url, token string) (driven.Answerer, error) {
	return newAPIClient(url, token)
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question",
	Long:  `Send one question to the Ask Richie server and print the cited answer.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	askCmd.Flags().StringVar(&askURL, "url", "", "API base URL (default $ASKRICHIE_URL or http://localhost:8080)")
	askCmd.Flags().StringVar(&askToken, "token", "", "bearer token (default $ASKRICHIE_TOKEN)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New(domain.MessageInvalidQuestion)
	}

	client, err := askAnswerer(askURL, askToken)
	if err != nil {
		return err
	}

	answer, err := client.Ask(context.Background(), question)
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(answer.Text)
	if len(answer.Sources) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, c := range answer.Sources {
			cmd.Printf("  %s %s (%s)\n", c.Reference, c.Title, c.DocType)
		}
	}
	return nil
}
