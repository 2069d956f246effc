package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestDebugCollections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.store.InsertOne(ctx, "warnings", bson.D{{Key: "guildId", Value: "g1"}})
	require.NoError(t, err)
	_, err = env.store.InsertOne(ctx, "GuildConfiguration", bson.D{{Key: "guildId", Value: "g1"}, {Key: "prefix", Value: "!"}})
	require.NoError(t, err)

	w, body := env.do(t, http.MethodGet, "/api/debug/mongo/collections", env.login(t, "1"), "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "sparcky", body["db"])
	require.Equal(t, []interface{}{"GuildConfiguration", "warnings"}, body["collections"])
}

func TestDebugGuildConfigProbe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.store.InsertOne(ctx, "GuildConfiguration", bson.D{{Key: "guildId", Value: "g1"}, {Key: "prefix", Value: "!"}})
	require.NoError(t, err)
	_, err = env.store.InsertOne(ctx, "custom", bson.D{{Key: "guildId", Value: "g1"}})
	require.NoError(t, err)

	w, body := env.do(t, http.MethodGet, "/api/debug/mongo/guild-config/g1?collection=custom", env.login(t, "1"), "")
	require.Equal(t, http.StatusOK, w.Code)
	tried := body["tried"].([]interface{})
	require.Equal(t, "custom", tried[0])
	require.Len(t, tried, 6)

	found := body["found"].([]interface{})
	require.Len(t, found, 2)
	require.Equal(t, "custom", found[0].(map[string]interface{})["collection"])
	hit := found[1].(map[string]interface{})
	require.Equal(t, "GuildConfiguration", hit["collection"])
	require.Equal(t, "!", hit["doc"].(map[string]interface{})["prefix"])

	// invalid names are listed but not queried
	w, body = env.do(t, http.MethodGet, "/api/debug/mongo/guild-config/g1?collection=bad%20name", env.login(t, "1"), "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "bad name", body["tried"].([]interface{})[0])
	require.Len(t, body["found"].([]interface{}), 1)

	w, _ = env.do(t, http.MethodGet, "/api/debug/mongo/collections", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
