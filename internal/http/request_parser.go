// Package http serves the widget JSON API.
//
// This file implements utilities for parsing and validating request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"pivotboard/internal/core"
)

// maxBodyBytes bounds request bodies; widget mappings are small.
const maxBodyBytes = 1 << 20

const maxSessionLength = 128

type expandRequest struct {
	Session  string   `json:"session"`
	Path     []string `json:"path"`
	Expanded *bool    `json:"expanded"`
}

type percentageRequest struct {
	Session string   `json:"session"`
	Path    []string `json:"path"`
}

type drilldownRequest struct {
	RowPath    []string `json:"row_path"`
	ColumnPath []string `json:"column_path"`
}

type refreshRequest struct {
	Version int64               `json:"version"`
	Filters []core.FilterClause `json:"filters"`
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields and
// trailing data. An empty body is an error unless allowEmpty is set.
func DecodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if allowEmpty {
				return nil
			}
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// ParseSession reads the session query parameter. Empty means the default
// session.
func ParseSession(query url.Values) (string, error) {
	s := sanitizeInput(query.Get("session"))
	if len(s) > maxSessionLength {
		return "", fmt.Errorf("session id too long (max %d characters)", maxSessionLength)
	}
	return s, nil
}

// cleanPath sanitizes each segment of a node path. Segments are kept even
// when blank, since blank is a valid group value.
func cleanPath(path []string) []string {
	out := make([]string, len(path))
	for i, seg := range path {
		out[i] = strings.Map(dropControl, seg)
	}
	return out
}

// RequireJSON rejects bodies declared with a non-JSON content type.
func RequireJSON(r *http.Request) *JSONResponseBuilder {
	ct := r.Header.Get("Content-Type")
	if ct == "" || strings.HasPrefix(ct, "application/json") {
		return nil
	}
	return ErrorResponse(http.StatusUnsupportedMediaType, "content type must be application/json")
}
