package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
)

// Upstream falso para validar o gateway localmente: responde as rotas de auth
// e uma rota qualquer de leitura, registrando cada acesso que passou pela admissão.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	reply := func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		logger.Info("upstream hit", slog.String("method", r.Method), slog.String("path", r.URL.Path))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(body)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		reply(w, r, map[string]any{"success": true, "token": "fake"})
	})
	mux.HandleFunc("POST /api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		reply(w, r, map[string]any{"success": true})
	})
	mux.HandleFunc("GET /api/auth/session", func(w http.ResponseWriter, r *http.Request) {
		reply(w, r, map[string]any{"success": true, "authenticated": false})
	})
	mux.HandleFunc("GET /showTela", func(w http.ResponseWriter, r *http.Request) {
		reply(w, r, map[string]any{"success": true, "message": "Requisição recebida com sucesso!"})
	})

	addr := ":3000"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	logger.Info("upstream falso rodando", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("erro ao subir o servidor", slog.Any("err", err))
		os.Exit(1)
	}
}
