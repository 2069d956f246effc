package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sparcky/panel-api/internal/apperror"
	"github.com/sparcky/panel-api/internal/document/query"
	"github.com/sparcky/panel-api/internal/document/service"
	"go.mongodb.org/mongo-driver/bson"
)

// MaxBodyBytes bounds request bodies of the write routes.
const MaxBodyBytes = 1 << 20

// RegisterDocumentRoutes mounts the dev-db admin routes on rg. Authentication
// is the caller's job (rg is expected to carry the bearer middleware).
func RegisterDocumentRoutes(rg *gin.RouterGroup, svc *service.Service) {
	rg.GET("/collections", func(c *gin.Context) {
		res, err := svc.Collections(opContext(c))
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"db": res.Database, "collections": res.Collections, "allowed": res.Allowed})
	})

	rg.GET("/:collection/documents", func(c *gin.Context) {
		res, err := svc.List(opContext(c), c.Param("collection"), service.ListRequest{
			Filter:     c.Query("filter"),
			Sort:       c.Query("sort"),
			Projection: c.Query("projection"),
			Limit:      c.Query("limit"),
			Skip:       c.Query("skip"),
			GuildID:    c.Query("guildId"),
		})
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"db":         res.Database,
			"collection": res.Collection,
			"filter":     query.PlainDoc(res.Filter),
			"sort":       query.PlainDoc(res.Sort),
			"projection": query.PlainDoc(res.Projection),
			"limit":      res.Limit,
			"skip":       res.Skip,
			"total":      res.Total,
			"documents":  res.Items,
		})
	})

	rg.GET("/:collection/documents/:id", func(c *gin.Context) {
		res, err := svc.GetByID(opContext(c), c.Param("collection"), c.Param("id"))
		respond(c, http.StatusOK, res, err, false)
	})

	rg.POST("/:collection/documents", func(c *gin.Context) {
		raw, err := readBody(c)
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		res, err := svc.Insert(opContext(c), c.Param("collection"), raw)
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true, "db": res.Database, "collection": res.Collection, "document": res.Document})
	})

	rg.PATCH("/:collection/documents/:id", func(c *gin.Context) {
		raw, err := readBody(c)
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		res, err := svc.PatchByID(opContext(c), c.Param("collection"), c.Param("id"), raw)
		respond(c, http.StatusOK, res, err, true)
	})

	rg.PUT("/:collection/documents/:id", func(c *gin.Context) {
		raw, err := readBody(c)
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		res, err := svc.ReplaceByID(opContext(c), c.Param("collection"), c.Param("id"), raw)
		respond(c, http.StatusOK, res, err, true)
	})

	rg.DELETE("/:collection/documents/:id", func(c *gin.Context) {
		res, err := svc.DeleteByID(opContext(c), c.Param("collection"), c.Param("id"))
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "db": res.Database, "collection": res.Collection, "query": query.PlainDoc(res.Query)})
	})

	rg.GET("/:collection/by-guild/:guildId", func(c *gin.Context) {
		res, err := svc.GetByKey(opContext(c), c.Param("collection"), guildKey(c))
		respond(c, http.StatusOK, res, err, false)
	})

	rg.PUT("/:collection/by-guild/:guildId", func(c *gin.Context) {
		raw, err := readBody(c)
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		res, err := svc.UpsertByKey(opContext(c), c.Param("collection"), guildKey(c), raw)
		respond(c, http.StatusOK, res, err, true)
	})

	rg.GET("/:collection/by-user/:guildId/:userId", func(c *gin.Context) {
		res, err := svc.GetByKey(opContext(c), c.Param("collection"), userKey(c))
		respond(c, http.StatusOK, res, err, false)
	})

	rg.PUT("/:collection/by-user/:guildId/:userId", func(c *gin.Context) {
		raw, err := readBody(c)
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		res, err := svc.UpsertByKey(opContext(c), c.Param("collection"), userKey(c), raw)
		respond(c, http.StatusOK, res, err, true)
	})

	if svc.ExportsEnabled() {
		rg.POST("/:collection/export", func(c *gin.Context) {
			res, err := svc.Export(opContext(c), c.Param("collection"), c.Query("filter"))
			if err != nil {
				apperror.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"key": res.Key, "url": res.URL, "count": res.Count})
		})
	}
}

// opContext keeps request values but not cancellation: once started, a store
// operation runs to completion even if the client goes away.
func opContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func respond(c *gin.Context, status int, res *service.Result, err error, write bool) {
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	body := gin.H{
		"db":         res.Database,
		"collection": res.Collection,
		"query":      query.PlainDoc(res.Query),
		"document":   res.Document,
	}
	if write {
		body["ok"] = true
	}
	c.JSON(status, body)
}

func guildKey(c *gin.Context) bson.D {
	return bson.D{{Key: "guildId", Value: c.Param("guildId")}}
}

func userKey(c *gin.Context) bson.D {
	return bson.D{{Key: "guildId", Value: c.Param("guildId")}, {Key: "userId", Value: c.Param("userId")}}
}

// readBody decodes the JSON body preserving key order. An empty body is nil.
func readBody(c *gin.Context) (any, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	data, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperror.BadRequest("Request body too large")
		}
		return nil, apperror.BadRequest("Failed to read request body")
	}
	if len(data) == 0 {
		return nil, nil
	}
	v, err := query.DecodeOrdered(data)
	if err != nil {
		return nil, apperror.BadRequest("Invalid JSON body")
	}
	return v, nil
}
