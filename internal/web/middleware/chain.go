package middleware

import (
	"net/http"
)

// Middleware is a function that wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// Chain composes middleware for handlers mounted outside the router
type Chain []Middleware

// NewChain creates a chain; the first middleware is the outermost
func NewChain(middlewares ...Middleware) Chain {
	return Chain(middlewares)
}

// Append returns a new chain with m added innermost
func (c Chain) Append(m ...Middleware) Chain {
	return append(append(Chain(nil), c...), m...)
}

// Then wraps handler with every middleware in the chain
func (c Chain) Then(handler http.Handler) http.Handler {
	for i := len(c) - 1; i >= 0; i-- {
		handler = c[i](handler)
	}
	return handler
}
