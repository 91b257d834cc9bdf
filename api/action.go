package api

import (
	"net/http"
	"net/url"
	"strconv"
)

// Action selects the HTTP method of a request.
type Action int

const (
	ActionList Action = iota
	ActionRead
	ActionCreate
	ActionUpdate
	ActionDelete
)

// Method returns the HTTP method for the action.
func (a Action) Method() string {
	switch a {
	case ActionCreate:
		return http.MethodPost
	case ActionUpdate:
		return http.MethodPut
	case ActionDelete:
		return http.MethodDelete
	default:
		return http.MethodGet
	}
}

// Reads reports whether the response body of the action is returned to the caller.
func (a Action) Reads() bool {
	return a == ActionList || a == ActionRead
}

func (a Action) String() string {
	switch a {
	case ActionList:
		return "list"
	case ActionRead:
		return "read"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return "action(" + strconv.Itoa(int(a)) + ")"
}

// Query parameters sent to the server.
const (
	ParamQuery    = "q"
	ParamOrderBy  = "orderby"
	ParamPage     = "page"
	ParamPageSize = "pagesize"
)

// Pagination headers returned by the server.
const (
	HeaderTotal      = "X-Total"
	HeaderTotalPages = "X-Total-Pages"
	HeaderPage       = "X-Page"
	HeaderPageSize   = "X-Page-Size"
)

// Params are the query and pagination state of a paged request. A Params
// value is updated from the response headers after every exchange.
type Params struct {
	Query      string
	OrderBy    string
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// Values encodes the set parameters.
func (p *Params) Values() url.Values {
	v := url.Values{}
	if p == nil {
		return v
	}
	if p.Query != "" {
		v.Set(ParamQuery, p.Query)
	}
	if p.OrderBy != "" {
		v.Set(ParamOrderBy, p.OrderBy)
	}
	if p.Page != 0 {
		v.Set(ParamPage, strconv.Itoa(p.Page))
	}
	if p.PageSize != 0 {
		v.Set(ParamPageSize, strconv.Itoa(p.PageSize))
	}
	return v
}

// Update copies pagination headers present in h. Malformed values are ignored.
func (p *Params) Update(h http.Header) {
	if p == nil || h == nil {
		return
	}
	set := func(name string, dst *int) {
		if val := h.Get(name); val != "" {
			if n, err := strconv.Atoi(val); err == nil {
				*dst = n
			}
		}
	}
	set(HeaderTotal, &p.Total)
	set(HeaderTotalPages, &p.TotalPages)
	set(HeaderPage, &p.Page)
	set(HeaderPageSize, &p.PageSize)
}

// HasNext reports whether another page follows the current one.
func (p *Params) HasNext() bool {
	return p != nil && p.Page > 0 && p.Page < p.TotalPages
}
