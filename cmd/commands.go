// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tochemey/sharedchain/chain"
	"github.com/tochemey/sharedchain/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// nodeView is the printed form of a node
type nodeView struct {
	ID       string `json:"id"`
	Revision int64  `json:"revision,omitempty"`
	Data     any    `json:"data"`
	NextID   string `json:"next_id,omitempty"`
}

// session is an open chain bound to the lifetime of one command
type session struct {
	chain  *chain.Chain[any]
	ctx    context.Context
	cancel context.CancelFunc
	logger log.Logger
}

func (s *session) close() {
	s.cancel()
	if err := s.chain.Close(); err != nil {
		s.logger.Warnf("failed to close the chain: %v", err)
	}
	_ = s.logger.Flush()
}

// openSession opens the configured chain and places its cursor on the head
func openSession(cmd *cobra.Command, v *viper.Viper) (*session, error) {
	logger := newLogger(v)
	ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))

	var payloadCodec chain.Codec[any] = chain.JSON[any]{}
	if v.GetBool("compress") {
		payloadCodec = chain.Zstd[any]{Codec: payloadCodec}
	}

	c, err := chain.Open[any](ctx, chainConfig(v),
		chain.WithLogger(logger),
		chain.WithCodec[any](payloadCodec))
	if err != nil {
		cancel()
		return nil, err
	}

	s := &session{chain: c, ctx: ctx, cancel: cancel, logger: logger}
	if err := c.Start(ctx, nil); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func newChainCommands(v *viper.Viper) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Creates the head of the chain when missing and prints it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, v)
			if err != nil {
				return err
			}
			defer s.close()
			return printNode(cmd.OutOrStdout(), s.chain.Current())
		},
	}

	appendCmd := &cobra.Command{
		Use:   "append [payload]",
		Short: "Appends a node, retrying until it commits",
		Long: WrapString(`Appends a node carrying the JSON payload at the tail of the chain.
The append is retried while other writers win the race for the tail.`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parsePayload(args[0])
			if err != nil {
				return err
			}

			id, _ := cmd.Flags().GetString("id")
			if id == "" {
				id = uuid.NewString()
			}

			s, err := openSession(cmd, v)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.chain.Append(s.ctx, id, data); err != nil {
				return err
			}
			return printNode(cmd.OutOrStdout(), s.chain.Current())
		},
	}
	appendCmd.Flags().String("id", "", WrapString("The id of the new node, a random UUID when empty"))

	tryAppendCmd := &cobra.Command{
		Use:   "try-append [id] [payload]",
		Short: "Tries to append a node once",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parsePayload(args[1])
			if err != nil {
				return err
			}

			s, err := openSession(cmd, v)
			if err != nil {
				return err
			}
			defer s.close()

			ok, err := s.chain.TryAppend(s.ctx, args[0], data)
			if err != nil {
				return err
			}

			if !ok {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "id=%s, committed=false\n", args[0])
				return nil
			}
			return printNode(cmd.OutOrStdout(), s.chain.Current())
		},
	}

	walkCmd := &cobra.Command{
		Use:   "walk",
		Short: "Prints the nodes of the chain in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, _ := cmd.Flags().GetString("from")
			limit, _ := cmd.Flags().GetInt("limit")

			s, err := openSession(cmd, v)
			if err != nil {
				return err
			}
			defer s.close()

			if from != "" {
				found, err := s.chain.TryLoadUntil(s.ctx, from)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("node %q is not on the chain", from)
				}
			}

			for printed := 0; limit <= 0 || printed < limit; printed++ {
				if err := printNode(cmd.OutOrStdout(), s.chain.Current()); err != nil {
					return err
				}

				moved, err := s.chain.Next(s.ctx)
				if err != nil || !moved {
					return err
				}
			}
			return nil
		},
	}
	walkCmd.Flags().String("from", "", WrapString("The id of the first node to print, the head when empty"))
	walkCmd.Flags().Int("limit", 0, WrapString("The maximum number of nodes to print, zero prints them all"))

	getCmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Prints a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, v)
			if err != nil {
				return err
			}
			defer s.close()

			found, err := s.chain.TryLoadUntil(s.ctx, args[0])
			if err != nil {
				return err
			}

			if !found {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "id=%s, found=false\n", args[0])
				return nil
			}
			return printNode(cmd.OutOrStdout(), s.chain.Current())
		},
	}

	existsCmd := &cobra.Command{
		Use:   "exists [id]",
		Short: "Tells whether a node id is already on the chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, v)
			if err != nil {
				return err
			}
			defer s.close()

			exists, err := s.chain.IDIsAlreadyOnChain(s.ctx, args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "id=%s, exists=%t\n", args[0], exists)
			return nil
		},
	}

	extraCmd := &cobra.Command{
		Use:   "extra",
		Short: "Reads and writes the extra data stored next to the chain",
	}

	extraSetCmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Stores a JSON value under key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parsePayload(args[1])
			if err != nil {
				return err
			}

			s, err := openSession(cmd, v)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.chain.SaveExtraData(s.ctx, args[0], value); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "set successfully")
			return nil
		},
	}

	extraGetCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Prints the value stored under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, v)
			if err != nil {
				return err
			}
			defer s.close()

			var value any
			found, err := s.chain.LoadExtraData(s.ctx, args[0], &value)
			if err != nil {
				return err
			}

			if !found {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "key=%s, found=false\n", args[0])
				return nil
			}

			encoded, err := json.Marshal(value)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "key=%s, found=true, value=%s\n", args[0], encoded)
			return nil
		},
	}
	extraCmd.AddCommand(extraSetCmd, extraGetCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Prints the appends announced by the notification transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, _ := cmd.Flags().GetInt("count")
			config := chainConfig(v)
			config.Sanitize()
			if config.Notify.Driver == "" {
				return errors.New("watch requires --notify-driver")
			}

			logger := newLogger(v)
			defer func() { _ = logger.Flush() }()

			notifier, err := chain.OpenNotifier(cmd.Context(), config, logger)
			if err != nil {
				return err
			}
			defer func() { _ = notifier.Close() }()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			events, err := notifier.Subscribe(ctx)
			if err != nil {
				return err
			}

			for received := 0; count <= 0 || received < count; received++ {
				event, ok := <-events
				if !ok {
					return nil
				}

				var data any
				if len(event.Data) > 0 {
					if err := json.Unmarshal(event.Data, &data); err != nil {
						data = string(event.Data)
					}
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s %s\n", event.Timestamp.Format(time.RFC3339Nano), event.PreviousID, event.ID, mustJSON(data))
			}
			return nil
		},
	}
	watchCmd.Flags().Int("count", 0, WrapString("Stop after that many events, zero watches until interrupted"))

	return []*cobra.Command{startCmd, appendCmd, tryAppendCmd, walkCmd, getCmd, existsCmd, extraCmd, watchCmd}
}

// parsePayload decodes a JSON argument. Invalid JSON is kept as a string.
func parsePayload(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("payload is empty")
	}

	var payload any
	if err := json.UnmarshalFromString(raw, &payload); err != nil {
		return raw, nil
	}
	return payload, nil
}

func printNode(w io.Writer, node chain.Node[any]) error {
	encoded, err := json.Marshal(nodeView{
		ID:       node.ID,
		Revision: node.Revision,
		Data:     node.Data,
		NextID:   node.NextID,
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s\n", encoded)
	return err
}

func mustJSON(value any) string {
	encoded, err := json.MarshalToString(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return encoded
}
