package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwrk-planet/roomsync/internal/domain"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a room and join it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		room, err := a.rooms.CreateRoom(cmd.Context(), a.settings.Name)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		renderRoom(cmd.OutOrStdout(), room)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <room-id>",
	Short: "Show a room snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		room, err := a.rooms.GetRoom(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get room: %w", err)
		}
		renderRoom(cmd.OutOrStdout(), room)
		return nil
	},
}

var tabCmd = &cobra.Command{
	Use:   "tab <room-id> <code|notes|whiteboard>",
	Short: "Switch the active tab for everyone in the room",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tab := domain.Tab(args[1])
		if !tab.Valid() {
			return fmt.Errorf("%w: unknown tab %q", domain.ErrValidation, args[1])
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		room, err := a.rooms.UpdateTab(cmd.Context(), args[0], tab)
		if err != nil {
			return fmt.Errorf("update tab: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active tab: %s\n", room.ActiveTab)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd, getCmd, tabCmd)
}
