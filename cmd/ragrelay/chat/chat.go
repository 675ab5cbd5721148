// Package chatcmder provides the chat command for chatting with a running
// relay from the terminal.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/l-messias/ragrelay/pkg/cliui"
	"github.com/l-messias/ragrelay/pkg/client"
	"github.com/l-messias/ragrelay/pkg/config"
	"github.com/l-messias/ragrelay/pkg/dotdir"
	"github.com/l-messias/ragrelay/pkg/llm"
	"github.com/l-messias/ragrelay/pkg/logger"
	"github.com/l-messias/ragrelay/pkg/utils"
)

type chatCommander struct {
	relayTarget string
	separator   string
	markdown    bool
	debug       bool
	configDir   string

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	dotdir *dotdir.Manager
	logger *zap.Logger
}

var chatFlagKeys = []string{
	config.FlagRelayTarget,
	config.FlagSeparator,
}

const chatLongDesc string = `Start an interactive chat session with a running relay.

Each message is sent to the relay together with the earlier turns of the
conversation and the answer is printed as it streams in. Ctrl+C stops the
answer being streamed without leaving the chat.

The session id handed out by the relay and the conversation are kept in the
.ragrelay/ directory, so a later "ragrelay chat" resumes where it stopped.

Commands:
  /reset    Start a new conversation with a new session id
  /exit     Leave the chat (or Ctrl+D)

Examples:
  ragrelay chat
  ragrelay chat --relay http://localhost:3000 --markdown`

const chatShortDesc string = "Interactive chat with a running relay"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, chatFlagKeys)
			cfg := config.FromViper(v)
			cmder.relayTarget = cfg.Client.RelayTarget
			cmder.separator = cfg.Client.Separator
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayTarget, &cmder.relayTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagSeparator, &cmder.separator)
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render each final answer as markdown when writing to a terminal")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithWriter(c.errOut))
	defer func() { _ = c.logger.Sync() }()

	c.dotdir = dotdir.NewManager()

	cl, err := client.New(c.relayTarget,
		client.WithSeparator(c.separator),
		client.WithLogger(c.logger),
	)
	if err != nil {
		return err
	}
	defer cl.Close()

	state, err := c.dotdir.LoadChatState(c.configDir)
	if err != nil {
		return fmt.Errorf("loading chat state: %w", err)
	}

	fmt.Fprintln(c.out)
	if state != nil && state.ClientID != "" {
		cl.SetClientID(state.ClientID)
		fmt.Fprintf(c.out, "  %s Resuming session %s %s\n",
			cliui.SuccessMark,
			cliui.ValueStyle.Render(utils.Truncate(state.ClientID, 8)),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(state.Messages))),
		)
	} else {
		state, err = c.newConversation(ctx, cl)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(c.out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Relay:"),
		cliui.ValueStyle.Render(c.relayTarget),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /reset starts over, /exit or Ctrl+D quits."))

	scanner := bufio.NewScanner(c.in)

	for {
		fmt.Fprint(c.out, cliui.UserPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}
		if input == "/reset" {
			if err := c.dotdir.ClearChatState(c.configDir); err != nil {
				return fmt.Errorf("clearing chat state: %w", err)
			}
			fmt.Fprintln(c.out)
			state, err = c.newConversation(ctx, cl)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out)
			continue
		}

		answer, err := c.ask(ctx, cl, input, history(state))
		if err != nil {
			fmt.Fprintf(c.errOut, "  %s %v\n\n", cliui.FailMark, err)
			continue
		}
		if answer == "" {
			continue
		}

		state.Messages = append(state.Messages,
			dotdir.ChatMessage{Role: "user", Content: input},
			dotdir.ChatMessage{Role: "assistant", Content: answer},
		)
		if err := c.dotdir.SaveChatState(state, c.configDir); err != nil {
			c.logger.Warn("could not save chat state", zap.Error(err))
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// newConversation asks the relay for a session id and persists an empty
// conversation under it.
func (c *chatCommander) newConversation(ctx context.Context, cl *client.Client) (*dotdir.ChatState, error) {
	var id string
	err := cliui.Step(c.out, "Starting new session", func() error {
		var err error
		id, err = cl.NewSession(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}

	state := &dotdir.ChatState{ClientID: id}
	if err := c.dotdir.SaveChatState(state, c.configDir); err != nil {
		return nil, fmt.Errorf("saving chat state: %w", err)
	}
	return state, nil
}

// ask streams one answer to the output and returns it. An answer interrupted
// with Ctrl+C returns empty so the turn is not kept.
func (c *chatCommander) ask(ctx context.Context, cl *client.Client, query string, messages []llm.Message) (string, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stream, err := cl.Stream(ctx, query, messages)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	fmt.Fprint(c.out, cliui.AssistantPrompt)

	var (
		printed   string
		final     string
		complete  bool
		streamErr error
	)
	for ev := range stream.Events() {
		switch ev.Kind {
		case client.EventData, client.EventComplete:
			fmt.Fprint(c.out, delta(printed, ev.Answer))
			printed = ev.Answer
			if ev.Kind == client.EventComplete {
				final, complete = ev.Answer, true
			}
		case client.EventError:
			streamErr = ev.Err
		}
	}
	fmt.Fprintln(c.out)

	switch {
	case streamErr != nil:
		fmt.Fprintln(c.out)
		return "", streamErr
	case !complete:
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("(cancelled)"))
		return "", nil
	}

	if c.markdown && final != "" && isTerminal(c.out) {
		rendered, err := cliui.RenderMarkdown(final)
		if err != nil {
			c.logger.Debug("could not render answer", zap.Error(err))
		} else {
			fmt.Fprint(c.out, rendered)
		}
	}
	fmt.Fprintln(c.out)

	return final, nil
}

// delta returns the part of next not printed yet. Answers only grow, so
// anything else is printed on a fresh line in full.
func delta(printed, next string) string {
	if strings.HasPrefix(next, printed) {
		return next[len(printed):]
	}
	return "\n" + next
}

func history(state *dotdir.ChatState) []llm.Message {
	messages := make([]llm.Message, 0, len(state.Messages))
	for _, m := range state.Messages {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	return messages
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && cliui.IsTerminal(f)
}
