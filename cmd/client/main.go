package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"pulse-chat/api"
	"pulse-chat/infrastructure/grpc/server"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `envconfig:"CHAT_SERVER_ADDR" default:"localhost:8081"`
	Email         string `envconfig:"CHAT_EMAIL" required:"true"`
	Password      string `envconfig:"CHAT_PASSWORD" required:"true"`
	// CHAT_REGISTER creates the account before logging in
	Register bool `envconfig:"CHAT_REGISTER" default:"false"`
	// Exactly one of CHAT_PEER and CHAT_ROOM_ID selects where typed lines go
	Peer   string `envconfig:"CHAT_PEER"`
	RoomID string `envconfig:"CHAT_ROOM_ID"`
	// CHAT_COLOURS enables colorized output
	Colours bool `envconfig:"CHAT_COLOURS" default:"true"`
	// CHAT_DEBUG prints every RPC with its status code and latency
	Debug bool `envconfig:"CHAT_DEBUG" default:"false"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run logs in, prints the conversation list, then streams events while sending typed lines.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if (config.Peer == "") == (config.RoomID == "") {
		return exitConfig, errors.New("set exactly one of CHAT_PEER and CHAT_ROOM_ID")
	}
	p := printer{colours: config.Colours}

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Establish connection to the server.
	conn, err := grpc.NewClient(config.ServerAddress,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)
			if config.Debug {
				p.debug(fmt.Sprintf("GRPC %s [%s] in %v", method, status.Code(err), time.Since(start)))
			}
			return err
		}),
	)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() { _ = conn.Close() }()

	// 4. Authenticate and attach the token to every outgoing call.
	token, err := authenticate(ctx, api.NewAuthServiceClient(conn), config)
	if err != nil {
		return exitRuntime, err
	}
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	client := api.NewChatServiceClient(conn)

	// 5. Show where we left off.
	conversations, err := client.Conversations(ctx, &api.Empty{})
	if err != nil {
		return exitRuntime, fmt.Errorf("cannot list conversations: %w", err)
	}
	printConversations(os.Stdout, conversations.Conversations)

	// 6. Open the event stream.
	stream, err := client.Connect(ctx, &api.ConnectRequest{})
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open stream: %w", err)
	}
	header, err := stream.Header()
	if err != nil {
		return exitRuntime, fmt.Errorf("stream refused: %w", err)
	}
	connectionID := first(header.Get(server.ConnectionIDHeader))
	p.info(fmt.Sprintf(">>> Connected to %s (Ctrl+C to quit)", config.ServerAddress))

	errChan := make(chan error, 2)
	go func() { errChan <- receive(ctx, client, stream, p) }()
	go func() { errChan <- typeLines(ctx, client, os.Stdin, config, connectionID) }()

	select {
	case <-ctx.Done():
		p.info("Stopping client...")
		return exitOK, nil
	case err := <-errChan:
		if err == nil || ctx.Err() != nil {
			return exitOK, nil
		}
		return exitRuntime, err
	}
}

func authenticate(ctx context.Context, client *api.AuthServiceClient, config Config) (string, error) {
	if config.Register {
		res, err := client.Register(ctx, &api.RegisterRequest{Email: config.Email, Password: config.Password})
		if err != nil {
			return "", fmt.Errorf("registration failed: %w", err)
		}
		return res.Token, nil
	}
	res, err := client.Login(ctx, &api.LoginRequest{Email: config.Email, Password: config.Password})
	if err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	return res.Token, nil
}

// receive prints pushed events and acknowledges incoming messages as delivered.
func receive(ctx context.Context, client *api.ChatServiceClient, stream grpc.ServerStreamingClient[api.ServerEvent], p printer) error {
	for {
		evt, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream error: %w", err)
		}
		p.event(evt)
		if evt.Type == "newMessage" && evt.Message != nil {
			_, err := client.AdvanceStatus(ctx, &api.AdvanceStatusRequest{MessageID: evt.Message.ID, Status: "delivered"})
			if err != nil {
				p.warn(fmt.Sprintf("cannot acknowledge %s: %v", evt.Message.ID, err))
			}
		}
	}
}

// typeLines sends every stdin line. Keystrokes raise the typing signal through the debouncer,
// a sent line ends the burst.
func typeLines(ctx context.Context, client *api.ChatServiceClient, in io.Reader, config Config, connectionID string) error {
	typing := newTypingDebouncer(typingIdle, func(on bool) {
		_, _ = client.Typing(ctx, &api.TypingRequest{ReceiverID: config.Peer, RoomID: config.RoomID, Typing: on})
	})
	defer typing.Flush()

	reader := bufio.NewReader(in)
	var line strings.Builder
	for {
		r, _, err := reader.ReadRune()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if r != '\n' {
			line.WriteRune(r)
			typing.Touch()
			continue
		}
		content := strings.TrimSpace(line.String())
		line.Reset()
		if content == "" {
			continue
		}
		typing.Flush()
		_, err = client.SendMessage(ctx, &api.SendMessageRequest{
			ReceiverID: config.Peer,
			RoomID:     config.RoomID,
			Content:    content,
			OriginID:   connectionID,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
		}
	}
}

func printConversations(w io.Writer, conversations []api.Conversation) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Type", "With", "Last message", "At", "Status"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, c := range conversations {
		with := c.PeerID
		if c.Room != nil {
			with = c.Room.Name + " (" + c.Room.ID + ")"
		}
		row := []string{c.Type, with, "", "", ""}
		if c.LastMessage != nil {
			row[2] = c.LastMessage.Content
			row[3] = c.LastMessage.CreatedAt.Local().Format(time.DateTime)
			row[4] = c.LastMessage.Status
		}
		table.Append(row)
	}
	table.Render()
}

type printer struct {
	colours bool
}

func (p printer) render(style color.Style, s string) string {
	if !p.colours {
		return s
	}
	return style.Render(s)
}

func (p printer) info(s string)  { fmt.Println(p.render(color.New(color.FgGreen), s)) }
func (p printer) warn(s string)  { fmt.Println(p.render(color.New(color.FgYellow), s)) }
func (p printer) debug(s string) { fmt.Println(p.render(color.New(color.FgGray), s)) }

func (p printer) event(evt *api.ServerEvent) {
	at := evt.CreatedAt.Local().Format(time.TimeOnly)
	switch {
	case evt.Message != nil:
		where := evt.Message.SenderID
		if evt.Message.RoomID != "" {
			where = "#" + evt.Message.RoomID + " " + where
		}
		fmt.Printf("[%s] %s: %s\n", at, p.render(color.New(color.FgCyan, color.OpBold), where), evt.Message.Content)
	case evt.Status != nil:
		p.debug(fmt.Sprintf("[%s] %s is %s", at, evt.Status.MessageID, evt.Status.Status))
	case evt.Typing != nil:
		verb := "stopped typing"
		if evt.Typing.Typing {
			verb = "is typing..."
		}
		p.debug(fmt.Sprintf("[%s] %s %s", at, evt.Typing.UserID, verb))
	case evt.Presence != nil:
		state := "offline"
		if evt.Presence.Online {
			state = "online"
		}
		p.info(fmt.Sprintf("[%s] %s is %s", at, evt.Presence.UserID, state))
	case evt.Error != nil:
		fmt.Println(p.render(color.New(color.FgRed), fmt.Sprintf("[%s] %s: %s", at, evt.Error.Reason, evt.Error.Detail)))
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
