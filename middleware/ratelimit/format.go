// utilitário pequeno para formatação rápida/consistente de valores numéricos em headers.

package ratelimit

import (
	"strconv"
	"time"
)

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

// formatSeconds arredonda para cima: Retry-After nunca deve ser 0 quando bloqueado.
func formatSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return formatInt(secs)
}
