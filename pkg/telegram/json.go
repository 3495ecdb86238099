package telegram

import (
	"encoding/json"
	"log"
)

// ToJsonBytes serializes the record for the websocket wire format.
func (t *Telegram) ToJsonBytes() []byte {
	data, err := json.Marshal(t)
	if err != nil {
		log.Printf("Error marshaling telegram: %v", err)
		return nil
	}
	return data
}

// TelegramFromJsonBytes deserializes a record received over the wire.
// Returns nil if the payload is not a valid telegram.
func TelegramFromJsonBytes(data []byte) *Telegram {
	var t Telegram
	if err := json.Unmarshal(data, &t); err != nil {
		return nil
	}
	return &t
}
