// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RedisCounter: janela deslizante distribuída (sorted set + script Lua atômico)
//   - MemoryCounter: fallback em processo, com limpeza probabilística e janitor
//   - RedisClient: ciclo de vida (Init/Close) da conexão compartilhada
//   - Memory/Redis/OTel StatsStore: estatísticas best-effort das decisões
package infra
