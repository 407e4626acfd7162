package domain

import "time"

const (
	ActivityUpload   = "upload"
	ActivityProcess  = "process"
	ActivityOutput   = "output"
	ActivityDownload = "download"
)

type ActivityLog struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Action    string    `json:"action"`
	Filename  string    `json:"filename"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"timestamp"`
}
