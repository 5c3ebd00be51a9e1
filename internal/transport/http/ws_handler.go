package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// ResponseFeed is the live stream of answered responses per team.
type ResponseFeed interface {
	Subscribe(teamID string) (<-chan domain.ResponseRecord, func())
}

type WSHandler struct {
	feed     ResponseFeed
	tabs     Tabs
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(feed ResponseFeed, tabs Tabs, logger logrus.FieldLogger) *WSHandler {
	return &WSHandler{
		feed: feed,
		tabs: tabs,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type subscribedPayload struct {
	TeamID string `json:"teamId"`
}

// ServeWS streams answered responses of a team to the leaderboard tab so it
// can refresh without polling. The tab must be bound to the caller's group,
// the same scope GET /api/leaderboard enforces.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	teamID, tabID := query.Get("teamId"), query.Get("tabId")
	if teamID == "" || tabID == "" {
		writeError(w, http.StatusBadRequest, "missing teamId or tabId")
		return
	}
	if _, err := h.tabs.ResolveScope(r.Context(), teamID, tabID, query.Get("groupId")); err != nil {
		h.log.WithError(err).WithField("team_id", teamID).Warn("ws scope rejected")
		writeServiceError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := h.feed.Subscribe(teamID)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).WithField("team_id", teamID).Debug("ws write failed")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case record, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "response", Payload: record}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "subscribed", Payload: subscribedPayload{TeamID: teamID}}

	// The tab never sends anything meaningful; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
