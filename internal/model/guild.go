package model

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ModelGuild 固定的文档类型标识
const ModelGuild = "Guild"

// Guild 公会模型
// ID 由存储层在插入时分配（24 位十六进制的 ObjectID），之后不可修改
type Guild struct {
	ID             string `gorm:"primaryKey;type:varchar(24)" json:"_id"`
	Model          string `gorm:"not null;type:varchar(16);default:Guild" json:"model"`
	GuildName      string `gorm:"uniqueIndex;not null;type:varchar(100)" json:"guildName"`
	GuildID        string `gorm:"not null;type:varchar(64)" json:"guildID"`
	Owner          string `gorm:"not null;type:varchar(64)" json:"owner"`
	AnnouncementID string `gorm:"type:varchar(64)" json:"announcementID,omitempty"`
}

func (Guild) TableName() string {
	return "guilds"
}

// NewID 生成新的存储标识
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// NormalizeID 返回小写形式，NewID 生成的 id 都是小写
func NormalizeID(id string) string {
	return strings.ToLower(id)
}

// ValidID 判断 id 是否是合法的存储标识
func ValidID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}
