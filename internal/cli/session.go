package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mkbrennan/partyquiz/internal/bridge"
	"github.com/mkbrennan/partyquiz/internal/config"
	"github.com/mkbrennan/partyquiz/internal/engine"
	"github.com/mkbrennan/partyquiz/internal/reconcile"
)

func reconcileOptions(cfg config.Config) reconcile.Options {
	return reconcile.Options{TrustEmptyRoster: cfg.Reconcile.TrustEmptyRoster}
}

func newHostCmd() *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Attach to a session as the host display",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), code, engine.RoleHost, "")
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "session code")
	cmd.MarkFlagRequired("code")
	return cmd
}

func newPlayerCmd() *cobra.Command {
	var code, playerID string
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Attach to a session as a player",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), code, engine.RolePlayer, playerID)
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "session code")
	cmd.Flags().StringVar(&playerID, "player-id", "", "player identity")
	cmd.MarkFlagRequired("code")
	cmd.MarkFlagRequired("player-id")
	return cmd
}

func runSession(ctx context.Context, code, role, playerID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	apiBase := cfg.Server.APIBaseURL
	if env := os.Getenv("PARTYQUIZ_API_URL"); env != "" {
		apiBase = env
	}
	wsBase := cfg.Server.WSBaseURL
	if env := os.Getenv("PARTYQUIZ_WS_URL"); env != "" {
		wsBase = env
	}

	eng, err := engine.New(engine.Config{
		SessionCode:     code,
		Role:            role,
		PlayerID:        playerID,
		APIBaseURL:      apiBase,
		WSBaseURL:       wsBase,
		PollInterval:    config.Duration(cfg.Poller.Interval, 0),
		SnapshotTimeout: config.Duration(cfg.Poller.SnapshotTimeout, 0),
		Grace:           config.Duration(cfg.Gate.Grace, 0),
		Transport:       cfg.TransportConfig(),
		Reconcile:       reconcileOptions(cfg),
	})
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng.Run(runCtx)
	defer eng.Close()

	if addr := cfg.Server.BridgeAddr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: bridge.NewHandler(eng).Routes()}
		go func() {
			log.Info().Str("addr", addr).Msg("UI bridge listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("UI bridge failed")
			}
		}()
		defer srv.Close()
	}

	views, cancel := eng.Subscribe()
	defer cancel()

	for {
		select {
		case <-runCtx.Done():
			log.Info().Msg("shutting down")
			return nil
		case view, ok := <-views:
			if !ok {
				return nil
			}
			log.Info().
				Str("phase", string(view.Phase)).
				Int("players", len(view.Players)).
				Uint64("version", view.Version).
				Msg("session view updated")
		}
	}
}
