package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchids/sandtube/pkg/logger"
)

func TestAdminHandler_ListActiveWorkers(t *testing.T) {
	mr := miniredis.RunT(t)
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = inspector.Close() })

	h := NewAdminHandler(nil, nil, inspector, logger.NewNop())
	router := gin.New()
	router.GET("/workers", h.ListActiveWorkers)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workers", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env := decode(t, w)
	assert.Equal(t, float64(0), env.Data["count"])
	assert.Equal(t, []interface{}{}, env.Data["workers"])
}
