// Package application contém o caso de uso do rate limit: contar o evento na
// janela (Redis primeiro, fallback local se falhar) e decidir admitir/rejeitar.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, key) retorna uma Decision (admitido, contagem, limite).
package application
