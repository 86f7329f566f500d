package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func eventsCommand(client func() *apiClient) *cobra.Command {
	var (
		tcpAddr string
		topics  []string
		pretty  bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail live saved/trend events (WebSocket, or TCP with --tcp)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			for {
				var err error
				if tcpAddr != "" {
					err = tailTCP(ctx, tcpAddr, topics, out, pretty)
				} else {
					err = tailWebSocket(ctx, client().BaseURL, topics, out, pretty)
				}
				if ctx.Err() != nil {
					return nil
				}
				cmd.PrintErrf("[events] disconnected: %v\n", err)

				select {
				case <-ctx.Done():
					return nil
				case <-time.After(time.Second):
				}
			}
		},
	}
	cmd.Flags().StringVar(&tcpAddr, "tcp", "", "TCP event feed address, e.g. 127.0.0.1:7070")
	cmd.Flags().StringSliceVar(&topics, "topics", nil, "only these topics: saved, trend")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "pretty print JSON events")
	return cmd
}

func tailTCP(ctx context.Context, addr string, topics []string, out io.Writer, pretty bool) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if len(topics) > 0 {
		req, _ := json.Marshal(map[string]any{"type": "subscribe", "topics": topics})
		if _, err := conn.Write(append(req, '\n')); err != nil {
			return err
		}
	}

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		printEvent(out, sc.Bytes(), pretty)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

func tailWebSocket(ctx context.Context, baseURL string, topics []string, out io.Writer, pretty bool) error {
	wsURL, err := websocketURL(baseURL, "/ws")
	if err != nil {
		return err
	}
	if len(topics) > 0 {
		wsURL += "?" + url.Values{"topics": {strings.Join(topics, ",")}}.Encode()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		printEvent(out, msg, pretty)
	}
}

func printEvent(out io.Writer, line []byte, pretty bool) {
	if !pretty {
		fmt.Fprintln(out, string(line))
		return
	}
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		// not JSON? print raw
		fmt.Fprintln(out, string(line))
		return
	}
	b, _ := json.MarshalIndent(obj, "", "  ")
	fmt.Fprintln(out, string(b))
}
