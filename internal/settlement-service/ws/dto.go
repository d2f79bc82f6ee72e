package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Topic: "*" (tudo), "player:<id>" ou "wager:<id>"
type ClientMsg struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

// routing são os campos do payload usados para decidir os tópicos de um evento
type routing struct {
	WagerID uint64 `json:"wagerId"`
	Player  string `json:"player"`
}
