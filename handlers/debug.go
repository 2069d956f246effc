package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/sparcky/panel-api/internal/admin"
	"github.com/sparcky/panel-api/internal/apperror"
	"github.com/sparcky/panel-api/internal/document"
	"github.com/sparcky/panel-api/internal/document/repository"
	"go.mongodb.org/mongo-driver/bson"
)

// knownGuildConfigCollections are the spellings the bot has used for its
// configuration collection.
var knownGuildConfigCollections = []string{
	"guildconfigurations",
	"GuildConfigurations",
	"GuildConfiguration",
	"guildConfigurations",
	"guild_configs",
}

// RegisterDebugRoutes mounts read-only database diagnostics under /debug.
// They expose names and guild configuration documents, never credentials.
func RegisterDebugRoutes(rg *gin.RouterGroup, store repository.Store, requireAuth gin.HandlerFunc) {
	d := rg.Group("/debug/mongo", requireAuth)

	d.GET("/collections", func(c *gin.Context) {
		names, err := store.CollectionNames(c.Request.Context())
		if err != nil {
			apperror.Respond(c, apperror.Upstream("Failed to list collections", err))
			return
		}
		sort.Strings(names)
		c.JSON(http.StatusOK, gin.H{"db": store.Database(), "collections": names})
	})

	d.GET("/guild-config/:guildId", func(c *gin.Context) {
		guildID := c.Param("guildId")
		names := make([]string, 0, len(knownGuildConfigCollections)+1)
		if q := c.Query("collection"); q != "" {
			names = append(names, q)
		}
		names = append(names, knownGuildConfigCollections...)

		type hit struct {
			Collection string            `json:"collection"`
			Doc        document.Document `json:"doc"`
		}
		found := []hit{}
		for _, name := range names {
			if !admin.ValidCollectionName(name) {
				continue
			}
			doc, err := store.FindOne(c.Request.Context(), name, bson.D{{Key: "guildId", Value: guildID}})
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				apperror.Respond(c, apperror.Upstream("Failed to read guild config", err))
				return
			}
			found = append(found, hit{Collection: name, Doc: doc})
		}
		c.JSON(http.StatusOK, gin.H{"guildId": guildID, "tried": names, "found": found})
	})
}
