// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

// Package main is a terminal chat client for a Cinelog server.
//
// It opens (or finds) the direct conversation with the user named on the
// command line, prints its history, then prints pushed messages while
// sending every line typed on stdin. Lines starting with "/" are commands:
//
//	/history   reprint the conversation from local state
//	/list      list conversations with unread counts
//	/quit      exit
//
// Configuration comes from CLIENT_* environment variables, see
// config.ClientConfig. CLIENT_USER_ID is required.
//
//	CLIENT_USER_ID=alice chatclient bob
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tomtom215/cinelog/internal/config"
	"github.com/tomtom215/cinelog/internal/delivery"
	"github.com/tomtom215/cinelog/internal/logging"
	"github.com/tomtom215/cinelog/internal/models"
	"github.com/tomtom215/cinelog/internal/realtime"
)

func main() {
	logging.Init(logging.Config{Level: "warn", Format: "console"})

	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: chatclient <participant-id>")
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load client configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, delivery.New(cfg), cfg.UserID, os.Args[1], os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("Chat client failed")
	}
}

func run(ctx context.Context, client *delivery.Client, userID, participantID string, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conv, err := client.StartConversation(ctx, participantID)
	if err != nil {
		return fmt.Errorf("start conversation: %w", err)
	}

	p := &printer{out: out, userID: userID, conversationID: conv.ID}
	client.OnMessage(p.message)
	client.OnEvent(p.event)
	client.OnConnectionChange(p.state)

	page, err := client.History(ctx, conv.ID, 0, 0)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	for _, msg := range page.Messages {
		p.message(msg)
	}
	if err := client.JoinChat(conv.ID); err != nil {
		return fmt.Errorf("join chat: %w", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(ctx) }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-runErr:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			done, err := handleLine(ctx, client, p, line)
			if err != nil {
				p.printf("! %v\n", err)
			}
			if done {
				return nil
			}
		}
	}
}

// handleLine runs one line of input. It reports true when the user quits.
func handleLine(ctx context.Context, client *delivery.Client, p *printer, line string) (bool, error) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false, nil
	case "/quit":
		return true, nil
	case "/history":
		for _, msg := range client.Store().Messages(p.conversationID) {
			p.message(msg)
		}
		return false, nil
	case "/list":
		list, err := client.Conversations(ctx)
		if err != nil {
			return false, err
		}
		for _, s := range list {
			p.printf("%s with %s (%d unread)\n", s.ID, strings.Join(s.Participants, ", "), s.UnreadCount)
		}
		return false, nil
	}
	if strings.HasPrefix(line, "/") {
		return false, fmt.Errorf("unknown command %s", line)
	}

	// Typing is best effort: the stream transport has no command channel.
	_ = client.SetTyping(p.conversationID, true)
	_, err := client.Send(ctx, p.conversationID, line)
	_ = client.SetTyping(p.conversationID, false)
	return false, err
}

type printer struct {
	out            io.Writer
	userID         string
	conversationID string
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

func (p *printer) message(msg models.Message) {
	if msg.ConversationID != p.conversationID {
		p.printf("[%s] new message from %s\n", msg.ConversationID, msg.SenderID)
		return
	}
	p.printf("%s %s: %s\n", msg.CreatedAt.Local().Format("15:04"), msg.SenderID, msg.Content)
}

func (p *printer) event(ev realtime.Event) {
	switch ev.Type {
	case realtime.EventTypingStart:
		if ev.UserID != p.userID {
			p.printf("* %s is typing\n", ev.UserID)
		}
	case realtime.EventUserOnline:
		p.printf("* %s is online\n", ev.UserID)
	case realtime.EventUserOffline:
		p.printf("* %s went offline\n", ev.UserID)
	case realtime.EventError:
		p.printf("! %s\n", ev.Error)
	}
}

func (p *printer) state(s delivery.ConnectionState) {
	p.printf("-- %s\n", s)
}
