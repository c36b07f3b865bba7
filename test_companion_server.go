package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type discoveryResponse struct {
	Type      string `json:"type"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func discoveryResponder(port int, channelPort int, marker, name string) {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		log.Fatal("Discovery responder failed to bind:", err)
	}
	defer conn.Close()

	log.Printf("📡 Discovery responder listening on :%d (marker %q)", port, marker)

	buf := make([]byte, 2048)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			log.Printf("Discovery read error: %v", err)
			continue
		}

		payload := string(buf[:n])
		if !strings.Contains(payload, marker) {
			continue
		}

		host := localIPFor(remote.IP)
		resp := discoveryResponse{
			Type:      "response",
			Host:      host,
			Port:      channelPort,
			Name:      name,
			Timestamp: time.Now().UnixMilli(),
		}
		data, _ := json.Marshal(resp)
		if _, err := conn.WriteToUDP(data, remote); err != nil {
			log.Printf("Discovery respond error: %v", err)
			continue
		}
		log.Printf("🔍 PROBE from %s, answered with %s:%d", remote, host, channelPort)
	}
}

// localIPFor picks the local address a probe sender would reach us on.
func localIPFor(remote net.IP) string {
	conn, err := net.Dial("udp4", net.JoinHostPort(remote.String(), "9"))
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func channelHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Channel upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("🔌 CHANNEL OPEN from %s", conn.RemoteAddr())

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Printf("🔌 CHANNEL CLOSED: %v", err)
			return
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("Malformed message: %v", err)
			continue
		}

		msgType, _ := msg["type"].(string)
		switch msgType {
		case "model_text":
			text, _ := msg["text"].(string)
			log.Printf("💬 MODEL TEXT: %q", text)
			// Echo the text back so the device side sees round-trip traffic
			echo, _ := json.Marshal(map[string]interface{}{
				"type": "model_text",
				"text": "echo: " + text,
			})
			conn.WriteMessage(websocket.TextMessage, echo)
		case "snapshot":
			id, _ := msg["id"].(string)
			size, _ := msg["size"].(float64)
			log.Printf("📷 SNAPSHOT %s (%d bytes)", id, int(size))
		case "command":
			command, _ := msg["command"].(string)
			log.Printf("⚙️  COMMAND: %s", command)
		default:
			log.Printf("❓ UNKNOWN TYPE: %s", msgType)
		}
	}
}

func main() {
	discoveryPort := flag.Int("discovery-port", 3002, "UDP discovery port")
	channelPort := flag.Int("channel-port", 3001, "HTTP/WebSocket channel port")
	marker := flag.String("marker", "LEARION_DISCOVER", "Discovery probe marker")
	name := flag.String("name", "test-companion", "Companion name announced to devices")
	flag.Parse()

	go discoveryResponder(*discoveryPort, *channelPort, *marker, *name)

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/channel", channelHandler)

	addr := fmt.Sprintf(":%d", *channelPort)
	log.Printf("🚀 Test Companion Server starting on %s", addr)
	log.Printf("📡 Health: http://localhost%s/health", addr)
	log.Printf("🔌 Channel: ws://localhost%s/channel", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
