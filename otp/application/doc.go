// Package application contém o caso de uso do OTP: emitir, verificar,
// consultar e consumir desafios, além da varredura de expirados.
//
// Ele depende do pacote domain (Repository, Hasher) e não conhece net/http.
package application
