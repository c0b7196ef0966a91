package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// wsHandler serves the conversation over a websocket. Submissions run on
// their own goroutine so a clear frame can cancel a streaming reply.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.localLogger.Error("websocket upgrade failed: ", err)
		return
	}
	defer conn.Close()

	view := &wsPresenter{conn: conn, localLogger: s.localLogger}
	ctrl := s.controller(view)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// replay what is already there so a reconnecting page catches up
	ctrl.Replay()

	for {
		var frame ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.localLogger.Warn("websocket read: ", err)
			}
			return
		}

		switch frame.Type {
		case "submit":
			go func(text string) {
				if err := ctrl.OnUserSubmit(ctx, text); err != nil {
					s.localLogger.Warn("websocket turn ended with: ", err)
				}
			}(frame.Text)
		case "clear":
			ctrl.OnClearRequested()
		default:
			view.send(ServerFrame{Type: FrameError, Content: "unknown frame type " + frame.Type})
		}
	}
}
