package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cwrk-planet/roomsync/internal/negotiation"
	"github.com/cwrk-planet/roomsync/internal/signaling"
)

var flagCall bool

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join a room and follow its updates until interrupted",
	Long: `Join a room over the signaling socket and print what happens in it.
With --call the client also joins the call and sends silent audio
and an empty video track to every other participant in the call.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		onTrack := func(remoteID string, t negotiation.RemoteTrack) {
			fmt.Fprintf(out, "remote %s track from %s\n", t.Kind, remoteID)
		}
		l, err := a.enter(ctx, args[0], flagCall, onTrack)
		if err != nil {
			return err
		}
		defer func() { _ = l.ctrl.Close() }()

		fmt.Fprintf(out, "joined %s as connection %s\n", args[0], l.ctrl.ConnectionID())
		renderParticipants(out, l.ctrl.Docs().Participants())

		g, gctx := errgroup.WithContext(ctx)
		if flagCall {
			if err := l.ctrl.JoinCall(); err != nil {
				return fmt.Errorf("join call: %w", err)
			}
			g.Go(func() error { return l.media.Run(gctx) })
		}
		g.Go(func() error { return follow(gctx, out, l) })
		err = g.Wait()
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

// follow печатает события комнаты, пока не закроется сокет или контекст.
func follow(ctx context.Context, out io.Writer, l *live) error {
	for {
		select {
		case ev := <-l.events:
			docs := l.ctrl.Docs()
			switch ev {
			case signaling.EventParticipantsUpdate:
				renderParticipants(out, docs.Participants())
			case signaling.EventTabChanged:
				fmt.Fprintf(out, "active tab: %s\n", docs.ActiveTab())
			case signaling.EventDocumentsUpdated:
				renderDocuments(out, docs.Documents())
			case signaling.EventCallUserJoined, signaling.EventCallUserLeft:
				if m := l.ctrl.Calls(); m != nil {
					fmt.Fprintf(out, "%s, peers: %v\n", ev, m.Peers())
				} else {
					fmt.Fprintln(out, ev)
				}
			}
		case <-l.ctrl.Done():
			return errors.New("connection closed by server")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func init() {
	joinCmd.Flags().BoolVar(&flagCall, "call", false, "join the call with synthetic media")
	rootCmd.AddCommand(joinCmd)
}
