// Package ratelimit fornece o adapter HTTP (net/http) do rate limit de janela deslizante.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: caso de uso (conta no Redis, cai no fallback local, decide)
//   - infra: implementações concretas (Redis + Lua, contador em memória, stats)
//   - ratelimit (este pacote): middleware HTTP + extração de identidade + predicados
//     de bypass + tradução para status/headers/JSON
//
// Fluxo por requisição:
//
//   1) SkipWhen casou? passa direto (ex: bearer token, rota de leitura liberada)
//   2) Resolve a identidade do cliente (CDN > X-Real-IP > XFF > RemoteAddr > "unknown")
//   3) Monta a chave "prefixo:identidade" e pede a decisão para a camada application
//   4) Se bloqueado, responde 429 com {"success":false,...,"errorCode":"RATE_LIMIT_EXCEEDED"}
//   5) Se permitido, chama o próximo handler
//
// Falha do Redis nunca bloqueia tráfego: a contagem daquela requisição vai para
// o contador local (precisão por processo) e um aviso é logado.
package ratelimit
