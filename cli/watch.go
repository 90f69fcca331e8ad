package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/xiaot623/hookwatch/internal/protocol"
)

var (
	watchAddr      string
	watchWorkspace string
	watchTerminal  string
	watchRun       string
	watchRaw       bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live frames from the viewer socket",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "ws://localhost:8080/ws", "viewer WebSocket address")
	watchCmd.Flags().StringVar(&watchWorkspace, "workspace", "", "subscribe to a workspace (* for any)")
	watchCmd.Flags().StringVar(&watchTerminal, "terminal", "", "subscribe to a terminal session (* for any)")
	watchCmd.Flags().StringVar(&watchRun, "run", "", "subscribe to a run (* for any)")
	watchCmd.Flags().BoolVar(&watchRaw, "raw", false, "print frames as indented JSON")
}

func runWatch(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connecting to %s...\n", watchAddr)

	conn, _, err := websocket.DefaultDialer.Dial(watchAddr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if watchWorkspace != "" || watchTerminal != "" || watchRun != "" {
		sub := protocol.ClientMessage{
			Type:              protocol.TypeSubscribe,
			WorkspaceID:       watchWorkspace,
			TerminalSessionID: watchTerminal,
			RunID:             watchRun,
		}
		if err := conn.WriteJSON(sub); err != nil {
			return fmt.Errorf("write subscribe: %w", err)
		}
		fmt.Fprintf(out, "Subscribed to %s\n", sub.Scope().String())
	}

	done := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					err = nil
				}
				done <- err
				return
			}
			if watchRaw {
				var pretty map[string]interface{}
				if json.Unmarshal(data, &pretty) == nil {
					data, _ = json.MarshalIndent(pretty, "", "  ")
				}
				fmt.Fprintln(out, string(data))
				continue
			}
			fmt.Fprintln(out, formatFrame(data))
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case err := <-done:
		return err
	case <-interrupt:
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		fmt.Fprintln(out, "\nInterrupted")
		return nil
	}
}
