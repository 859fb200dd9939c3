package server

import (
	"net/http"
	"time"

	"github.com/findly-app/findly/pkg/match"
	"github.com/findly-app/findly/pkg/rank"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait = 10 * time.Second
	wsReadWait  = 30 * time.Second
)

// Message types sent on the search websocket.
const (
	MessageMatches = "matches"
	MessageTrust   = "trust"
	MessageDone    = "done"
	MessageError   = "error"
)

// WSMessage is one frame of the two-phase search stream: the priced matches,
// then one trust update per scored match, then the final ranked list.
type WSMessage struct {
	Type      string             `json:"type"`
	ImageURL  string             `json:"image_url,omitempty"`
	HistoryID string             `json:"history_id,omitempty"`
	Matches   []match.LensMatch  `json:"matches,omitempty"`
	Update    *match.TrustUpdate `json:"update,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      s.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	s.log.Warnf("Websocket connection rejected from origin %q", origin)
	return false
}

func (s *Server) handleSearchWS(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxUploadBytes)

	send := func(m WSMessage) bool {
		b, err := json.Marshal(m)
		if err != nil {
			s.log.Errorf("Encode websocket message: %v", err)
			return false
		}
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			s.log.Debugf("Websocket write failed: %v", err)
			return false
		}
		return true
	}

	conn.SetReadDeadline(time.Now().Add(wsReadWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		s.log.Debugf("Websocket read failed: %v", err)
		return
	}
	var req SearchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		send(WSMessage{Type: MessageError, Error: "invalid request: " + err.Error()})
		return
	}
	opts, err := s.rankOptions(req)
	if err != nil {
		send(WSMessage{Type: MessageError, Error: err.Error()})
		return
	}

	ctx := r.Context()
	res, err := s.runSearch(ctx, req)
	if err != nil {
		s.log.Warnf("Search failed: %v", err)
		send(WSMessage{Type: MessageError, Error: "no results"})
		return
	}

	first := WSMessage{Type: MessageMatches, ImageURL: res.ImageURL, Matches: res.Matches}
	if res.HistoryItem != nil {
		first.HistoryID = res.HistoryItem.ID.String()
	}
	if !send(first) {
		return
	}

	for u := range res.Updates() {
		if !send(WSMessage{Type: MessageTrust, Update: &u}) {
			return
		}
	}

	final := rank.Rank(ctx, res.Wait(), opts, s.converter())
	if send(WSMessage{Type: MessageDone, Matches: final}) {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}
