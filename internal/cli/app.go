// Package cli implements the weconnect command tree.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shivamdeswal5/weconnect/internal/chat"
	"github.com/shivamdeswal5/weconnect/internal/config"
	"github.com/shivamdeswal5/weconnect/internal/contacts"
	"github.com/shivamdeswal5/weconnect/internal/logging"
	"github.com/shivamdeswal5/weconnect/internal/remote"
	"github.com/shivamdeswal5/weconnect/internal/remote/redisstream"
	"github.com/shivamdeswal5/weconnect/internal/session"
)

// App bundles the runtime every command needs: loaded config, the signed-in
// session, and a connected remote stream.
type App struct {
	Cfg     *config.Config
	Log     zerolog.Logger
	Session session.Session
	Stream  *redisstream.Stream
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loader.SetConfigFile(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, Exitf(ExitCodeFailure, "load config: %v", err)
	}
	return cfg, nil
}

func initLogging(cfg *config.Config) {
	logCfg := logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	}
	if cfg.Logging.File != "" {
		if f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			logCfg.Output = f
		}
	}
	logging.Init(logCfg)
}

// newApp builds the full runtime. Commands that only touch local state
// (login, logout, whoami) use loadConfig and the session store directly.
func newApp(cmd *cobra.Command) (*App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	initLogging(cfg)

	store := session.NewFileStore(cfg.SessionPath())
	sess, err := store.Current()
	if errors.Is(err, session.ErrNoSession) {
		return nil, Exitf(ExitCodeFailure, "not logged in; run `weconnect login <email>` first")
	}
	if err != nil {
		return nil, Exitf(ExitCodeFailure, "load session: %v", err)
	}

	stream, err := connectStream(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		Cfg:     cfg,
		Log:     logging.WithUser(sess.UID),
		Session: sess,
		Stream:  stream,
	}, nil
}

func connectStream(ctx context.Context, cfg *config.Config) (*redisstream.Stream, error) {
	stream, err := redisstream.New(ctx, redisstream.Config{
		URL:          cfg.Redis.URL,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		PresenceTTL:  cfg.Redis.PresenceTTL,
	}, logging.Component("redis"))
	if err != nil {
		return nil, Exitf(ExitCodeFailure, "connect to %s: %v", cfg.Redis.URL, err)
	}
	return stream, nil
}

func (a *App) Close() {
	if a.Stream != nil {
		if err := a.Stream.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("close stream")
		}
	}
}

// Directory returns a contact directory bound to the signed-in user.
func (a *App) Directory() *contacts.Directory {
	return contacts.NewDirectory(a.Stream, a.Session.UID, logging.Component("contacts"))
}

// resolvePeer turns a command argument into a peer uid. An empty argument
// falls back to the saved CLI context; otherwise the argument is tried as a
// uid and then matched against registered emails.
func (a *App) resolvePeer(ctx context.Context, arg string) (contacts.User, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		saved, err := config.DefaultContextStore().Load()
		if err != nil {
			return contacts.User{}, Exitf(ExitCodeFailure, "load context: %v", err)
		}
		if saved.IsEmpty() {
			return contacts.User{}, Exitf(ExitCodeFailure, "no contact given and none selected; run `weconnect use <contact>`")
		}
		arg = saved.PeerID
	}

	if raw, err := a.Stream.Read(ctx, remote.UserPath(arg)); err == nil {
		var u contacts.User
		if jsonErr := json.Unmarshal(raw, &u); jsonErr == nil && u.UID != "" {
			return u, nil
		}
	} else if !errors.Is(err, remote.ErrNotFound) {
		return contacts.User{}, Exitf(ExitCodeFailure, "look up contact: %v", err)
	}

	// Fall back to an email match over the directory.
	u, err := a.Directory().FindByEmail(ctx, arg)
	if errors.Is(err, contacts.ErrUnknownUser) {
		return contacts.User{}, Exitf(ExitCodeFailure, "unknown contact %q", arg)
	}
	if err != nil {
		return contacts.User{}, Exitf(ExitCodeFailure, "look up contact: %v", err)
	}
	return u, nil
}

// conversationWith derives the conversation id between the signed-in user and
// the peer.
func (a *App) conversationWith(peerUID string) (string, error) {
	conv, err := chat.DeriveConversationID(a.Session.UID, peerUID)
	if err != nil {
		return "", Exitf(ExitCodeFailure, "derive conversation: %v", err)
	}
	return conv, nil
}
