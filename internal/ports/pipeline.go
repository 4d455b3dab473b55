package ports

import "context"

// Pipeline es el proceso externo de razonamiento multi-etapa.
// Recibe el tip en bruto y devuelve el texto completo producido por todas las etapas.
type Pipeline interface {
	// Ask runs every stage once for the given tip. The returned text may hold
	// several JSON fragments, some of them restating the same field.
	Ask(ctx context.Context, tip string) (string, error)
}
