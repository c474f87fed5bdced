package marketdata

import (
	"fmt"
	"net/http"
	"strconv"

	match "github.com/0x5487/marketsim"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Routes returns the HTTP handler of the feed.
func (f *Feed) Routes() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), f.cors())

	router.GET("/snapshot", f.handleSnapshot)
	router.GET("/depth", f.handleDepth)
	router.GET("/ws/book", f.handleBookStream)
	router.GET("/ws/trades", f.handleTradeStream)
	return router
}

func (f *Feed) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", f.corsOrigin)
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (f *Feed) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, match.MarketSnapshotToProtocol(f.Snapshot()))
}

func (f *Feed) handleDepth(c *gin.Context) {
	limit := uint64(match.DefaultDepthLimit)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || parsed == 0 {
			writeError(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}
	c.JSON(http.StatusOK, match.DepthToProtocol(f.Depth(uint32(limit))))
}

func (f *Feed) handleBookStream(c *gin.Context) {
	conn, err := f.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := f.bookHub.Subscribe(f.buffer)
	defer f.bookHub.Unsubscribe(sub)

	// new subscribers start from the current state
	first := outboundMessage{Type: "book", Data: match.MarketSnapshotToProtocol(f.Snapshot())}
	if err := conn.WriteJSON(first); err != nil {
		return
	}

	closed := watchClose(conn)
	for {
		select {
		case <-closed:
			return
		case snap, ok := <-sub.ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "book", Data: snap}); err != nil {
				return
			}
		}
	}
}

func (f *Feed) handleTradeStream(c *gin.Context) {
	conn, err := f.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := f.tradeHub.Subscribe(f.buffer)
	defer f.tradeHub.Unsubscribe(sub)

	closed := watchClose(conn)
	for {
		select {
		case <-closed:
			return
		case trade, ok := <-sub.ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "trade", Data: trade}); err != nil {
				return
			}
		}
	}
}

// watchClose reads until the peer goes away. Clients never send data, but
// reading is required to process control frames.
func watchClose(conn *websocket.Conn) <-chan struct{} {
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return closed
}

func writeError(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}
