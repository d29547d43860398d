package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"veldora.quest/internal/protocol"
)

// A minimal scripted client: connect, pick an NPC from WELCOME, send one
// SAY, and print everything the server pushes back.
func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "bot", "player name")
		npc  = flag.String("npc", "", "npc to talk to (default: first in WELCOME)")
		text = flag.String("say", "Hello! What do you have for sale?", "message to send")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		Capabilities: protocol.HelloCapabilities{
			MaxQueue: 8,
		},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME player_id=%s tick_rate=%d model=%s npcs=%d", w.PlayerID, w.WorldParams.TickRateHz, w.WorldParams.Model, len(w.Npcs))
			target := *npc
			if target == "" && len(w.Npcs) > 0 {
				target = w.Npcs[0].Name
			}
			if target == "" {
				logger.Printf("no npc to talk to")
				continue
			}
			say := protocol.SayMsg{
				Type:            protocol.TypeSay,
				ProtocolVersion: protocol.Version,
				To:              target,
				Text:            *text,
			}
			if err := conn.WriteJSON(say); err != nil {
				logger.Fatalf("send SAY: %v", err)
			}
			logger.Printf("SAY to=%s text=%q", target, *text)

		case protocol.TypeCatalog:
			var c protocol.CatalogMsg
			if err := json.Unmarshal(msg, &c); err != nil {
				continue
			}
			logger.Printf("CATALOG name=%s digest=%.12s", c.Name, c.Digest)

		case protocol.TypeEvent:
			var ev protocol.EventMsg
			if err := json.Unmarshal(msg, &ev); err != nil {
				continue
			}
			for _, e := range ev.Events {
				logger.Printf("tick=%d event=%v", ev.Tick, e)
			}
		}
	}
}
