package model

import "time"

// 公会生命周期事件类型
const (
	EventGuildCreated = "guild.created"
	EventGuildDeleted = "guild.deleted"
	EventGuildWiped   = "guild.wiped"
)

// GuildEvent is published after a mutation has been committed.
type GuildEvent struct {
	Type      string    `json:"type"`
	GuildID   string    `json:"guild_id,omitempty"`
	GuildName string    `json:"guild_name,omitempty"`
	Count     int64     `json:"count,omitempty"`
	At        time.Time `json:"at"`
}

// Key is the partition key: the guild id, or "*" for collection-wide events.
func (e GuildEvent) Key() string {
	if e.GuildID == "" {
		return "*"
	}
	return e.GuildID
}
