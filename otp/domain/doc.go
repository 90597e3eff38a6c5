// Package domain define o desafio OTP, seus estados e os contratos de
// persistência (Repository) e de hash (Hasher).
//
// Ciclo de vida por (identity, purpose):
//
//	Criado -> Verificado | Expirado | Esgotado -> Consumido (apagado)
//
// Emitir um novo desafio para o mesmo par apaga o anterior.
package domain
