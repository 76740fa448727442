package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes v as a JSON body with the given status
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes v with 200 OK
func OK(w http.ResponseWriter, v interface{}) {
	JSON(w, http.StatusOK, v)
}

// Created writes v with 201 Created
func Created(w http.ResponseWriter, v interface{}) {
	JSON(w, http.StatusCreated, v)
}

// NoContent writes an empty 204 response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Errors renders {"errors": [...]} with the given status, the shape clients
// use for auth failures.
func Errors(w http.ResponseWriter, status int, messages ...string) {
	JSON(w, status, map[string]interface{}{
		"success": false,
		"errors":  messages,
	})
}
