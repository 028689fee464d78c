package protocol

import "time"

// StoredReport is a notification the coordinator received and persisted
type StoredReport struct {
	ID         string    `json:"id"`
	Hostname   string    `json:"hostname"`
	Outcome    Outcome   `json:"outcome"`
	RemoteAddr string    `json:"remote_addr"`
	ReceivedAt time.Time `json:"received_at"`
}
