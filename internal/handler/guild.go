package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/Nexus/internal/apperr"
	"github.com/Gopher0727/Nexus/internal/model"
	"github.com/Gopher0727/Nexus/internal/service"
)

type GuildHandler struct {
	guildService service.IGuildService
}

func NewGuildHandler(guildService service.IGuildService) *GuildHandler {
	return &GuildHandler{
		guildService: guildService,
	}
}

// ListGuilds handles GET /api/guilds
func (h *GuildHandler) ListGuilds(c *gin.Context) {
	guilds, err := h.guildService.ListGuilds(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, guilds)
}

// GetGuild handles GET /api/guilds/:id
func (h *GuildHandler) GetGuild(c *gin.Context) {
	guild, err := h.guildService.GetGuild(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, guild)
}

// CreateGuild handles POST /api/guilds
func (h *GuildHandler) CreateGuild(c *gin.Context) {
	var req model.CreateGuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.InvalidInput("invalid request body: %v", err))
		return
	}

	guild, err := h.guildService.CreateGuild(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, guild)
}

// DeleteGuild handles DELETE /api/guilds/:id
func (h *GuildHandler) DeleteGuild(c *gin.Context) {
	guild, err := h.guildService.DeleteGuild(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.String(http.StatusOK, "%s with the id %s was deleted!", guild.GuildName, guild.ID)
}

// DeleteAllGuilds handles PATCH /api/guilds/deleteAll
func (h *GuildHandler) DeleteAllGuilds(c *gin.Context) {
	n, err := h.guildService.DeleteAllGuilds(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.String(http.StatusOK, "%s", WipeMessage(n))
}

// WipeMessage 删除全部后的提示文本，CLI 也使用
func WipeMessage(n int64) string {
	return fmt.Sprintf("We wiped out %d Guilds!", n)
}
