package router

import (
	"fmt"
	"net/http"
)

// CRUDOperation represents a REST operation type
type CRUDOperation int

const (
	// OpList represents the list/index operation (GET /)
	OpList CRUDOperation = iota
	// OpCreate represents the create operation (POST /)
	OpCreate
	// OpShow represents the show/read operation (GET /{id})
	OpShow
	// OpUpdate represents the update operation (PUT and PATCH /{id})
	OpUpdate
	// OpDelete represents the delete operation (DELETE /{id})
	OpDelete
)

// String returns the string representation of CRUDOperation
func (o CRUDOperation) String() string {
	switch o {
	case OpList:
		return "index"
	case OpCreate:
		return "create"
	case OpShow:
		return "show"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "destroy"
	default:
		return "unknown"
	}
}

// ResourceHandlers contains handlers for resource operations.
// Nil handlers are not routed.
type ResourceHandlers struct {
	List   http.HandlerFunc
	Create http.HandlerFunc
	Show   http.HandlerFunc
	Update http.HandlerFunc
	Delete http.HandlerFunc
}

// Resources registers the REST routes of a resource at path. Member routes
// use {idParam}; routes are named "<name>.<operation>".
func (r *Router) Resources(path, name, idParam string, handlers ResourceHandlers) {
	member := fmt.Sprintf("%s/{%s}", path, idParam)
	named := func(route *Route, op CRUDOperation) {
		route.Named(name + "." + op.String())
	}

	if handlers.List != nil {
		named(r.Get(path, handlers.List), OpList)
	}
	if handlers.Create != nil {
		named(r.Post(path, handlers.Create), OpCreate)
	}
	if handlers.Show != nil {
		named(r.Get(member, handlers.Show), OpShow)
	}
	if handlers.Update != nil {
		named(r.Patch(member, handlers.Update), OpUpdate)
		named(r.Put(member, handlers.Update), OpUpdate)
	}
	if handlers.Delete != nil {
		named(r.Delete(member, handlers.Delete), OpDelete)
	}
}
