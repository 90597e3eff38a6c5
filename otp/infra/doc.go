// Package infra traz as implementações de domain.Repository (SQL e memória),
// o esquema da tabela otp_challenges e o HMACHasher.
package infra
