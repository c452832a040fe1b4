// Package cases holds the command line operations for managing and poking at
// murder mystery cases without going through the web UI.
package cases

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/araina/gumshoe/internal/activecase"
	"github.com/araina/gumshoe/internal/dataservice"
	"github.com/araina/gumshoe/internal/envstruct"
	"github.com/araina/gumshoe/internal/errors"
	"github.com/araina/gumshoe/internal/gamebackend"
	"github.com/araina/gumshoe/internal/logging"
	"github.com/araina/gumshoe/internal/notify"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "cases",
	Title: "Case operations",
}

type configuration struct {
	ServiceURL string `env:"GUMSHOE_SERVICE_URL"`
	ServiceKey string `env:"GUMSHOE_SERVICE_KEY"`
	BackendURL string `env:"GUMSHOE_BACKEND_URL"`
}

func setup() (configuration, *slog.Logger, error) {
	var cfg configuration
	if err := envstruct.Populate(&cfg, os.LookupEnv); err != nil {
		return cfg, nil, errors.Wrap(err, "parse configuration")
	}
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))
	return cfg, logger, nil
}

func init() {
	Create.Flags().String("title", "", "title for the new case")
	Create.Flags().String("description", "", "optional flavor text steering the case generation")
	Create.Flags().Int("characters", 5, "number of characters to generate")
	_ = Create.MarkFlagRequired("title")
}

var List = &cobra.Command{
	Use:     "list [identity-id]",
	GroupID: "cases",
	Short:   "List cases",
	Long:    "Lists every case the identity owns, the active one marked with an asterisk",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		client := dataservice.NewClient(cfg.ServiceURL, cfg.ServiceKey, logger)

		owned, err := dataservice.UserCases(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}
		for _, c := range owned {
			marker := " "
			if c.IsActive {
				marker = "*"
			}
			fmt.Printf("%s %-36s %-12s %s\n", marker, c.ID, c.Status, c.Title)
		}
		return nil
	},
}

var Create = &cobra.Command{
	Use:     "create [identity-id]",
	GroupID: "cases",
	Short:   "Generate a new case",
	Long:    "Asks the game engine to generate a new case for the identity. Generation can take a while.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		title, err := cmd.Flags().GetString("title")
		if err != nil {
			return errors.Wrap(err, "invalid title flag")
		}
		description, err := cmd.Flags().GetString("description")
		if err != nil {
			return errors.Wrap(err, "invalid description flag")
		}
		characterCount, err := cmd.Flags().GetInt("characters")
		if err != nil {
			return errors.Wrap(err, "invalid characters flag")
		}

		backend := gamebackend.NewClient(cfg.BackendURL, logger)
		caseID, err := backend.CreateCase(cmd.Context(), args[0], gamebackend.CreateCaseParams{
			Title:          title,
			Description:    description,
			CharacterCount: characterCount,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created case %s\n", caseID)
		return nil
	},
}

var Activate = &cobra.Command{
	Use:     "activate [identity-id] [case-id]",
	GroupID: "cases",
	Short:   "Activate a case",
	Long:    "Makes the case the identity's active investigation and deactivates the rest",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		client := dataservice.NewClient(cfg.ServiceURL, cfg.ServiceKey, logger)
		selector := activecase.NewSelector(client, notify.NewCenter(), logger)

		if err = selector.Set(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		current := selector.Current()
		if current.CaseID == "" {
			fmt.Printf("Activated %s, but it is not ready to investigate yet\n", args[1])
			return nil
		}
		fmt.Printf("Activated %s (%s)\n", current.CaseID, current.CaseName)
		return nil
	},
}

var Ask = &cobra.Command{
	Use:     "ask [case-id] [question...]",
	GroupID: "cases",
	Short:   "Ask the case a question",
	Long:    "Sends a free-form question to the game engine and prints the in-character answer",
	Args:    cobra.MinimumNArgs(2), //nolint:mnd // case id plus at least one word
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		backend := gamebackend.NewClient(cfg.BackendURL, logger)

		answer, err := backend.Query(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	},
}
