package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	PlayerName      string            `json:"player_name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	PlayerID        string      `json:"player_id"`
	WorldParams     WorldParams `json:"world_params"`
	ItemsDigest     string      `json:"items_digest"`
	Npcs            []NpcRef    `json:"npcs"`
}

type WorldParams struct {
	TickRateHz int     `json:"tick_rate_hz"`
	TalkRadius float64 `json:"talk_radius"`
	Model      string  `json:"model"`
}

type NpcRef struct {
	Name       string     `json:"name"`
	Occupation string     `json:"occupation"`
	Pos        [2]float64 `json:"pos"`
}

// CATALOG (server -> client): the item catalog, sent once after WELCOME.
type CatalogMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Name            string      `json:"name"`
	Digest          string      `json:"digest"` // sha256 hex
	Data            interface{} `json:"data"`
}

// SAY (client -> server): the player finalized a line of dialogue
// addressed to an NPC.
type SayMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	To              string `json:"to"`
	Text            string `json:"text"`
}

// EVENT (server -> client): per-tick batch of loose events.
type EventMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	Events          []Event `json:"events"`
}

// Event is a loose key/value event. Common shapes:
//
//	{"t":<tick>,"type":"CHAT","from":"Hank","text":"..."}
//	{"t":<tick>,"type":"ACTION_RESULT","ref":"Bob-Hank","ok":false,"code":"E_NO_STOCK","detail":"..."}
//	{"t":<tick>,"type":"INPUT","enabled":true}
type Event map[string]any
