package admin

import "time"

type Stats struct {
	Users       int `json:"users"`
	Items       int `json:"items"`
	Visitors    int `json:"visitors"`
	VisitorsDay int `json:"visitors_day"`
	Errors      int `json:"errors"`
}

type Report struct {
	ID     int       `json:"id"`
	Time   time.Time `json:"time"`
	Reason string    `json:"reason"`
	ItemID int       `json:"item_id"`
}

type UserRow struct {
	ID          int        `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	BannedAt    *time.Time `json:"banned_at"`
	BanDuration int        `json:"ban_duration"`
}

type credRequest struct {
	UserID int    `json:"user_id"`
	VKey   string `json:"vKey"`
}

type userActionRequest struct {
	AdminID  int    `json:"admin_id"`
	VKey     string `json:"vKey"`
	UserID   int    `json:"target_id"`
	Duration int    `json:"duration"`
	Email    string `json:"email"`
}

type resolveRequest struct {
	ReportID    int    `json:"report_id"`
	UserID      int    `json:"user_id"`
	VKey        string `json:"vKey"`
	Action      string `json:"action"` // "delete", "ban" or "dismiss"
	BanDuration int    `json:"ban_duration"`
}

type itemActionRequest struct {
	ItemID int    `json:"item_id"`
	UserID int    `json:"user_id"`
	VKey   string `json:"vKey"`
	Action string `json:"action"` // "delete" or "ban"
}
