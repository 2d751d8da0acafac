package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
	"github.com/orris-inc/subflow/internal/interfaces/cli/appenv"
	httpRouter "github.com/orris-inc/subflow/internal/interfaces/http"
)

const sendTimeout = 30 * time.Second

var (
	env        string
	configPath string
	kind       string
	userID     uint
	fields     map[string]string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send one email notification now",
		Long: `Render and send a notification to a user immediately, bypassing the job queue.
The attempt is recorded like any queued delivery. Useful for welcome and
password reset emails and for re-sending a message by hand.`,
		Example: `  subflow notify --kind welcome --user 42
  subflow notify --kind password_reset --user 42 --set token=abc123`,
		RunE: run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Notification kind (welcome, password_reset, ...)")
	cmd.Flags().UintVarP(&userID, "user", "u", 0, "Recipient user id")
	cmd.Flags().StringToStringVar(&fields, "set", nil, "Template field, repeatable (key=value)")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	k, err := vo.ParseKind(kind)
	if err != nil {
		return err
	}

	e, err := appenv.Load(env, configPath)
	if err != nil {
		return err
	}
	if err := e.OpenDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer e.Close()

	container, err := httpRouter.NewContainer(e.DB, e.Config, e.Log)
	if err != nil {
		return fmt.Errorf("failed to wire application: %w", err)
	}
	defer container.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
	defer cancel()

	result := container.SendNotification(ctx, k, userID, templateData(fields))
	if !result.Success {
		return fmt.Errorf("failed to send %s to user %d: %w", k, userID, result.Error)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "sent %s to user %d (message %s)\n", k, userID, result.ProviderMessageID)
	return nil
}

func templateData(fields map[string]string) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	data := make(map[string]any, len(fields))
	for k, v := range fields {
		data[k] = v
	}
	return data
}
