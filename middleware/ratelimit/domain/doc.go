// Package domain define contratos e tipos de domínio para o rate limit de
// janela deslizante: a interface do contador (CounterStore), a decisão e os
// eventos de estatística.
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
