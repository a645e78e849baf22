// Command wsclient is a terminal client for the relay's live channel.
// Every stdin line is sent to PEER; incoming frames are printed as they arrive.
package main

import (
	"bufio"
	"context"
	"dm-relay/domain/chat"
	"dm-relay/domain/event"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.Token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.RelayURL, header)
	if err != nil {
		log.Fatalf("dial %s: %v", cfg.RelayURL, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	go func() {
		if err := sendLines(os.Stdin, conn, chat.UserID(cfg.Peer)); err != nil {
			log.Printf("send: %v", err)
		}
		stop()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("read: %v", err)
			}
			return
		}
		fmt.Println(render(raw, cfg.Colours))
	}
}

type frameWriter interface {
	WriteMessage(messageType int, data []byte) error
}

func sendLines(in io.Reader, conn frameWriter, peer chat.UserID) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		frame, err := sendMessageFrame(peer, line)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func sendMessageFrame(peer chat.UserID, content string) ([]byte, error) {
	data, err := json.Marshal(event.SendMessage{ReceiverID: peer, Content: content})
	if err != nil {
		return nil, err
	}
	return json.Marshal(event.Envelope{Event: event.SendMessageKind, Data: data})
}

func render(raw []byte, colours bool) string {
	evt, err := event.DecodeOutbound(raw)
	if err != nil {
		return paint(colours, color.FgRed, fmt.Sprintf("?? %s", raw))
	}
	switch e := evt.(type) {
	case event.ReceiveMessage:
		return paint(colours, color.FgGreen, fmt.Sprintf("[%s] %s: %s",
			e.Message.CreatedAt.Local().Format("15:04:05"), e.Message.SenderID, e.Message.Content))
	case event.MessageSent:
		return paint(colours, color.FgDarkGray, fmt.Sprintf("sent %s", e.Message.ID))
	case event.UserTyping:
		if !e.IsTyping {
			return paint(colours, color.FgDarkGray, fmt.Sprintf("%s stopped typing", e.SenderID))
		}
		return paint(colours, color.FgDarkGray, fmt.Sprintf("%s is typing...", e.SenderID))
	case event.OnlineUsers:
		users := make([]string, 0, len(e.Users))
		for _, u := range e.Users {
			users = append(users, u.String())
		}
		return paint(colours, color.FgCyan, "online: "+strings.Join(users, ", "))
	case event.UnreadCount:
		return paint(colours, color.FgYellow, fmt.Sprintf("unread: %d", e.Count))
	case event.Error:
		return paint(colours, color.FgRed, fmt.Sprintf("error %s: %s", e.Code, e.Message))
	default:
		return string(raw)
	}
}

func paint(colours bool, c color.Color, s string) string {
	if !colours {
		return s
	}
	return c.Render(s)
}
