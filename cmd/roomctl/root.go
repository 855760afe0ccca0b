package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cwrk-planet/roomsync/internal/domain"
	"github.com/cwrk-planet/roomsync/internal/restclient"
	grpcx "github.com/cwrk-planet/roomsync/internal/transport/grpc"
	"github.com/cwrk-planet/roomsync/pkg/logger"
)

var flags Options

var rootCmd = &cobra.Command{
	Use:   "roomctl",
	Short: "Client for roomsync interview rooms",
	Long: `roomctl talks to a roomsync server: creates and inspects rooms,
edits the shared documents and joins the call from the terminal.

Examples:
  roomctl create --name Alice
  roomctl get 3f1c...
  roomctl notes 3f1c... "ask about sharding"
  roomctl join 3f1c... --call`,
}

// Execute вызывается из main. Ctrl-C отменяет контекст команды.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// roomsAPI — REST или gRPC, команды не различают.
type roomsAPI interface {
	CreateRoom(ctx context.Context, hostName string) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	JoinRoom(ctx context.Context, roomID, displayName, participantID string) (*domain.Room, error)
	UpdateTab(ctx context.Context, roomID string, tab domain.Tab) (*domain.Room, error)
}

// app — всё, что нужно команде после разбора флагов.
type app struct {
	settings *Settings
	log      *slog.Logger
	rooms    roomsAPI
	closers  []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}

func newApp() (*app, error) {
	s, err := Load(flags, nil)
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{
		Service: "roomctl",
		Env:     logger.EnvDev,
		Backend: logger.BackendStd,
		Level:   logger.ParseLevel(s.LogLevel),
		Output:  os.Stderr,
	})
	a := &app{settings: s, log: log}
	if s.GRPC == "" {
		a.rooms = restclient.New(s.Server, log.With("component", "rest"))
		return a, nil
	}
	client, err := grpcx.NewClient(grpcx.ClientOptions{Target: s.GRPC})
	if err != nil {
		return nil, err
	}
	a.rooms = client
	a.closers = append(a.closers, client.Close)
	return a, nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.Server, "server", "", "roomsync server URL (env ROOMSYNC_SERVER)")
	pf.StringVar(&flags.GRPC, "grpc", "", "use the gRPC API at host:port for room calls (env ROOMSYNC_GRPC)")
	pf.StringVarP(&flags.Name, "name", "n", "", "display name (env ROOMSYNC_NAME)")
	pf.StringVar(&flags.STUN, "stun", "", "STUN server, \"none\" to disable (env STUN_SERVER)")
	pf.StringVar(&flags.TURN, "turn", "", "TURN server (env TURN_SERVER)")
	pf.StringVar(&flags.TURNUser, "turn-user", "", "TURN username (env TURN_USERNAME)")
	pf.StringVar(&flags.TURNPass, "turn-pass", "", "TURN password (env TURN_PASSWORD)")
	pf.StringVar(&flags.LogLevel, "log-level", "", "debug|info|warn|error (env ROOMSYNC_LOG_LEVEL)")
}
