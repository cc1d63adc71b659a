package contracts

import "github.com/julienschmidt/httprouter"

// Handler is a component that mounts its routes on a router.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(*httprouter.Router)

func (f HandlerFunc) RegisterRoutes(router *httprouter.Router) {
	f(router)
}
