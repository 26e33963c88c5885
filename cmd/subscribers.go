package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"github.com/vzahanych/weather-alert-bot/internal/notifier"
	"github.com/vzahanych/weather-alert-bot/internal/subscribers"
	"go.uber.org/zap"
)

var subscribersCmd = &cobra.Command{
	Use:   "subscribers",
	Short: "Manage alert subscribers",
}

func init() {
	subscribersCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List subscribed chats",
			Args:  cobra.NoArgs,
			RunE:  listSubscribers,
		},
		&cobra.Command{
			Use:   "add CHAT_ID",
			Short: "Subscribe a chat",
			Args:  cobra.ExactArgs(1),
			RunE:  addSubscriber,
		},
		&cobra.Command{
			Use:   "remove CHAT_ID",
			Short: "Unsubscribe a chat",
			Args:  cobra.ExactArgs(1),
			RunE:  removeSubscriber,
		},
	)
}

func openStore(cmd *cobra.Command) (subscribers.Store, func(), error) {
	return subscribers.NewStore(cmd.Context(), config.GetConfig().Subscribers, log.Logger)
}

func listSubscribers(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	ids, err := store.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintln(out, "no subscribers")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	return nil
}

func addSubscriber(cmd *cobra.Command, args []string) error {
	id, err := chatIDArg(args[0])
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	added, err := store.Add(cmd.Context(), id)
	if err != nil {
		return err
	}
	if added {
		log.Info("Subscriber added", zap.String("chat_id", id))
		fmt.Fprintf(cmd.OutOrStdout(), "subscribed %s\n", id)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is already subscribed\n", id)
	}
	return nil
}

func removeSubscriber(cmd *cobra.Command, args []string) error {
	id, err := chatIDArg(args[0])
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	removed, err := store.Remove(cmd.Context(), id)
	if err != nil {
		return err
	}
	if removed {
		log.Info("Subscriber removed", zap.String("chat_id", id))
		fmt.Fprintf(cmd.OutOrStdout(), "unsubscribed %s\n", id)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s was not subscribed\n", id)
	}
	return nil
}

// chatIDArg accepts the same ids the notifier can deliver to.
func chatIDArg(arg string) (string, error) {
	id := strings.TrimSpace(arg)
	if _, err := notifier.NewMessage(id, "", "", false); err != nil {
		return "", err
	}
	return id, nil
}
