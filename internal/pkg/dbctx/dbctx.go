// Package dbctx threads a request context and an optional transaction
// through the repo layer with one parameter instead of two.
package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction. A
// nil Tx means the repo runs the call on its own connection.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}
