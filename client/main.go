// Command client is an interactive console client for manual play-testing.
//
//	go run ./client -addr localhost:8080 -token <auth token>
//
// Type "help" for the command list.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
)

var (
	addr  = flag.String("addr", "localhost:8080", "server address")
	token = flag.String("token", "", "auth token")
)

type packet struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func send(c *websocket.Conn, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(packet{Event: event, Data: payload})
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, frame)
}

func main() {
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws", RawQuery: "token=" + url.QueryEscape(*token)}
	log.Printf("connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	go func() {
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				os.Exit(0)
			}
			fmt.Printf("<< %s\n", message)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		c.Close()
		os.Exit(0)
	}()

	roomID := ""
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "help":
			fmt.Println("join <room> | leave | ready | answer <text> | vote <first> <second> | action <continue|new_game|end> | quit")
		case "join":
			if len(fields) < 2 {
				fmt.Println("usage: join <room>")
				continue
			}
			roomID = fields[1]
			err = send(c, "join_room", map[string]string{"room_id": roomID})
		case "leave":
			err = send(c, "leave_room", map[string]string{"room_id": roomID})
		case "ready":
			err = send(c, "ready", map[string]string{"room_id": roomID})
		case "answer":
			err = send(c, "submit_answer", map[string]string{
				"room_id": roomID,
				"answer":  strings.Join(fields[1:], " "),
			})
		case "vote":
			if len(fields) < 3 {
				fmt.Println("usage: vote <first> <second>")
				continue
			}
			first, _ := strconv.Atoi(fields[1])
			second, _ := strconv.Atoi(fields[2])
			err = send(c, "submit_vote", map[string]interface{}{
				"room_id":      roomID,
				"first_place":  first,
				"second_place": second,
			})
		case "action":
			if len(fields) < 2 {
				fmt.Println("usage: action <continue|new_game|end>")
				continue
			}
			err = send(c, "game_action", map[string]string{
				"room_id": roomID,
				"action":  fields[1],
			})
		case "quit":
			return
		default:
			fmt.Println("unknown command; type help")
		}
		if err != nil {
			log.Println("send:", err)
			return
		}
	}
}
