package server

import (
	"io/fs"
	"net/http"
)

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /status", s.statusHandler)
	s.mux.HandleFunc("POST /chat", s.chatHandler)
	s.mux.HandleFunc("GET /models", s.modelsHandler)
	s.mux.HandleFunc("GET /model", s.currentModelHandler)
	s.mux.HandleFunc("POST /model", s.selectModelHandler)
	s.mux.HandleFunc("POST /clear", s.clearHandler)
	s.mux.HandleFunc("GET /chat.json", s.exportHandler)
	s.mux.HandleFunc("POST /chat.json", s.importHandler)
	s.mux.HandleFunc("GET /ws", s.wsHandler)

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	s.mux.Handle("GET /", http.FileServer(http.FS(static)))
}
