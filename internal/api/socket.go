package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oseayemenre/novelnest/internal/collection"
	"github.com/oseayemenre/novelnest/internal/models"
	"github.com/oseayemenre/novelnest/internal/search"
)

const (
	socketFeed   = "feed"
	socketSearch = "search"
	socketError  = "error"

	writeWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// socket serialises writes; gorilla connections allow one writer at a time.
type socket struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *socket) send(msg *models.SocketMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

// readUntilClosed calls fn for every text message and cancels once the peer
// goes away.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc, fn func([]byte)) {
	defer cancel()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if fn != nil {
			fn(message)
		}
	}
}

func decodeNovels(docs []collection.Document) []models.Novel {
	novels := make([]models.Novel, 0, len(docs))
	for _, d := range docs {
		var n models.Novel
		if err := d.Decode(&n); err != nil {
			continue
		}
		n.ID = d.ID
		novels = append(novels, n)
	}
	return novels
}

// HandleFeedSocket godoc
//
//	@Summary		Realtime feed
//	@Description	Pushes the newest published novels every time the collection changes. The subscription ends with the connection
//	@Tags			feed
//	@Success		101
//	@Router			/feed/ws [get]
func (a *Api) HandleFeedSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Error(fmt.Sprintf("error upgrading ws connection, %v", err), "service", "HandleFeedSocket")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ws := &socket{conn: conn}

	var mu sync.Mutex
	var latest []models.Novel
	changed := make(chan struct{}, 1)

	q := collection.Query{
		Collection: "novels",
		OrderBy:    []collection.Order{{Field: "createdAt", Desc: true}},
		Limit:      a.config.FeedPageSize,
	}.Where("published", collection.OpEqual, true)

	sub, err := a.collection.Subscribe(ctx, q, func(docs []collection.Document) {
		novels := decodeNovels(docs)

		mu.Lock()
		latest = novels
		mu.Unlock()

		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		a.logger.Error(fmt.Sprintf("error subscribing to feed: %v", err), "service", "HandleFeedSocket")
		ws.send(&models.SocketMessage{Type: socketError, Error: errRetry.Error()})
		return
	}
	defer sub.Close()

	go readUntilClosed(conn, cancel, nil)

	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			mu.Lock()
			novels := latest
			mu.Unlock()

			if err := ws.send(&models.SocketMessage{Type: socketFeed, Novels: novels}); err != nil {
				return
			}
		}
	}
}

// HandleSearchSocket godoc
//
//	@Summary		Incremental search
//	@Description	Accepts {"term": "..."} messages and answers with results once typing pauses
//	@Tags			search
//	@Success		101
//	@Router			/search/ws [get]
func (a *Api) HandleSearchSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Error(fmt.Sprintf("error upgrading ws connection, %v", err), "service", "HandleSearchSocket")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ws := &socket{conn: conn}

	debouncer := search.NewDebouncer(a.config.SearchDebounce, func(term string) {
		novels, err := a.search.Search(ctx, term)
		if err != nil {
			a.logger.Warn(err.Error(), "service", "HandleSearchSocket")
			ws.send(&models.SocketMessage{Type: socketError, Term: term, Error: errRetry.Error()})
			return
		}
		if err := ws.send(&models.SocketMessage{Type: socketSearch, Term: term, Novels: novels}); err != nil {
			cancel()
		}
	})
	defer debouncer.Stop()

	readUntilClosed(conn, cancel, func(message []byte) {
		var msg models.SocketMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			ws.send(&models.SocketMessage{Type: socketError, Error: fmt.Sprintf("unable to unmarshal json, %v", err)})
			return
		}
		debouncer.Input(msg.Term)
	})
}
