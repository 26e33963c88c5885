package subscribers

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"go.uber.org/zap"
)

// Store persists the set of chat ids that opted in to alerts.
type Store interface {
	// Add reports false when the chat was already subscribed.
	Add(ctx context.Context, chatID string) (bool, error)
	// Remove reports false when the chat was not subscribed.
	Remove(ctx context.Context, chatID string) (bool, error)
	Contains(ctx context.Context, chatID string) (bool, error)
	// List returns the subscribers sorted.
	List(ctx context.Context) ([]string, error)
}

// NewStore opens the backend selected by cfg.Backend. The returned close
// function releases the backend's connections.
func NewStore(ctx context.Context, cfg config.SubscribersConfig, logger *zap.Logger) (Store, func(), error) {
	switch cfg.Backend {
	case "valkey":
		client, err := NewValkeyClient(ctx, cfg.Valkey.Addr)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Subscriber store enabled", zap.String("backend", "valkey"), zap.String("addr", cfg.Valkey.Addr))
		return NewValkeyStore(client, cfg.Valkey.Key), client.Close, nil
	default:
		logger.Info("Subscriber store enabled", zap.String("backend", "file"), zap.String("path", cfg.Path))
		return NewFileStore(cfg.Path), func() {}, nil
	}
}

// NewValkeyClient connects to addr, which is either host:port or a
// redis:// / valkey:// URL, and pings it.
func NewValkeyClient(ctx context.Context, addr string) (valkey.Client, error) {
	opt, err := valkeyOptions(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid valkey address: %w", err)
	}

	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping failed: %w", err)
	}
	return client, nil
}

func valkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	if addr == "" {
		return valkey.ClientOption{}, fmt.Errorf("empty address")
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

// AllChatIDs returns the sorted union of the configured chat ids and the
// stored subscribers.
func AllChatIDs(ctx context.Context, store Store, configIDs []string) ([]string, error) {
	subs, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}

	ids := make([]string, 0, len(subs)+len(configIDs))
	for _, id := range append(subs, configIDs...) {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}
