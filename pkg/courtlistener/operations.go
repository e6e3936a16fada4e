// SPDX-License-Identifier: Apache-2.0
package courtlistener

import (
	"fmt"

	"github.com/openjurist/lexgate/pkg/errors"
)

// Kind classifies an operation's result shape. Search-like operations
// degrade to an empty result page; lookups degrade to an unavailable marker.
type Kind string

const (
	KindSearch Kind = "search"
	KindLookup Kind = "lookup"
)

// Param describes one tool input for schema generation and validation.
type Param struct {
	Name        string
	Type        string // string, number, boolean
	Required    bool
	Description string
}

// Operation declares one upstream endpoint as a tool: its schema, its input
// validation, how to build the upstream request, and the degraded payload it
// answers with when the upstream is unavailable. Each operation declares its
// own degraded shape; nothing is inferred from operation names.
type Operation struct {
	Name        string
	Description string
	Kind        Kind
	Method      string // GET or POST
	Params      []Param

	// Request validates args and returns the upstream endpoint and
	// parameters. Validation failures are CategoryValidation and are never
	// retried.
	Request func(args map[string]interface{}) (endpoint string, params map[string]interface{}, err error)
}

// Degraded returns the operation's declared degraded payload.
func (op Operation) Degraded() interface{} {
	switch op.Kind {
	case KindSearch:
		return map[string]interface{}{
			"count":    0,
			"results":  []interface{}{},
			"degraded": true,
		}
	default:
		return map[string]interface{}{
			"available": false,
			"degraded":  true,
		}
	}
}

// Operations returns the closed set of tools the gateway exposes.
func Operations() []Operation {
	return []Operation{
		{
			Name:        "search_opinions",
			Description: "Full-text search over court opinions, filterable by court, judge, and filing date.",
			Kind:        KindSearch,
			Method:      "GET",
			Params: []Param{
				{Name: "q", Type: "string", Required: true, Description: "Search query"},
				{Name: "court", Type: "string", Description: "Court identifier, e.g. scotus"},
				{Name: "judge", Type: "string", Description: "Judge name filter"},
				{Name: "filed_after", Type: "string", Description: "Earliest filing date, YYYY-MM-DD"},
				{Name: "filed_before", Type: "string", Description: "Latest filing date, YYYY-MM-DD"},
				{Name: "order_by", Type: "string", Description: "Sort order, e.g. score desc, dateFiled desc"},
				{Name: "page", Type: "number", Description: "Result page"},
			},
			Request: func(args map[string]interface{}) (string, map[string]interface{}, error) {
				q, err := requireString(args, "q")
				if err != nil {
					return "", nil, err
				}
				params := map[string]interface{}{"type": "o", "q": q}
				copyOptional(args, params, "court", "judge", "filed_after", "filed_before", "order_by")
				if page, ok, err := optionalID(args, "page"); err != nil {
					return "", nil, err
				} else if ok {
					params["page"] = page
				}
				return "search", params, nil
			},
		},
		{
			Name:        "get_opinion",
			Description: "Fetch one court opinion by its CourtListener ID.",
			Kind:        KindLookup,
			Method:      "GET",
			Params: []Param{
				{Name: "id", Type: "number", Required: true, Description: "Opinion ID"},
			},
			Request: lookupByID("opinions"),
		},
		{
			Name:        "get_cluster",
			Description: "Fetch an opinion cluster (a decision and its opinions) by ID.",
			Kind:        KindLookup,
			Method:      "GET",
			Params: []Param{
				{Name: "id", Type: "number", Required: true, Description: "Cluster ID"},
			},
			Request: lookupByID("clusters"),
		},
		{
			Name:        "get_docket",
			Description: "Fetch a case docket by its CourtListener ID.",
			Kind:        KindLookup,
			Method:      "GET",
			Params: []Param{
				{Name: "id", Type: "number", Required: true, Description: "Docket ID"},
			},
			Request: lookupByID("dockets"),
		},
		{
			Name:        "list_courts",
			Description: "List courts, optionally filtered by jurisdiction.",
			Kind:        KindSearch,
			Method:      "GET",
			Params: []Param{
				{Name: "jurisdiction", Type: "string", Description: "Jurisdiction code, e.g. F for federal appellate"},
				{Name: "page", Type: "number", Description: "Result page"},
			},
			Request: func(args map[string]interface{}) (string, map[string]interface{}, error) {
				params := map[string]interface{}{}
				copyOptional(args, params, "jurisdiction")
				if page, ok, err := optionalID(args, "page"); err != nil {
					return "", nil, err
				} else if ok {
					params["page"] = page
				}
				return "courts", params, nil
			},
		},
		{
			Name:        "get_judge",
			Description: "Fetch a judge's biographical and position data by person ID.",
			Kind:        KindLookup,
			Method:      "GET",
			Params: []Param{
				{Name: "id", Type: "number", Required: true, Description: "Person ID"},
			},
			Request: lookupByID("people"),
		},
		{
			Name:        "search_oral_arguments",
			Description: "Search oral argument audio recordings.",
			Kind:        KindSearch,
			Method:      "GET",
			Params: []Param{
				{Name: "q", Type: "string", Required: true, Description: "Search query"},
				{Name: "court", Type: "string", Description: "Court identifier"},
				{Name: "page", Type: "number", Description: "Result page"},
			},
			Request: func(args map[string]interface{}) (string, map[string]interface{}, error) {
				q, err := requireString(args, "q")
				if err != nil {
					return "", nil, err
				}
				params := map[string]interface{}{"type": "oa", "q": q}
				copyOptional(args, params, "court")
				if page, ok, err := optionalID(args, "page"); err != nil {
					return "", nil, err
				} else if ok {
					params["page"] = page
				}
				return "search", params, nil
			},
		},
		{
			Name:        "lookup_citation",
			Description: "Resolve legal citations found in a block of text to their opinions.",
			Kind:        KindSearch,
			Method:      "POST",
			Params: []Param{
				{Name: "text", Type: "string", Required: true, Description: "Text containing citations, e.g. 347 U.S. 483"},
			},
			Request: func(args map[string]interface{}) (string, map[string]interface{}, error) {
				text, err := requireString(args, "text")
				if err != nil {
					return "", nil, err
				}
				return "citation-lookup", map[string]interface{}{"text": text}, nil
			},
		},
	}
}

func lookupByID(resource string) func(map[string]interface{}) (string, map[string]interface{}, error) {
	return func(args map[string]interface{}) (string, map[string]interface{}, error) {
		id, ok, err := optionalID(args, "id")
		if err != nil {
			return "", nil, err
		}
		if !ok {
			return "", nil, errors.New(errors.CategoryValidation, "missing required parameter: id", nil)
		}
		return fmt.Sprintf("%s/%d", resource, id), nil, nil
	}
}

func requireString(args map[string]interface{}, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", errors.New(errors.CategoryValidation, "missing required parameter: "+name, nil)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", errors.New(errors.CategoryValidation, "parameter must be a non-empty string: "+name, nil)
	}
	return s, nil
}

// optionalID reads an integer argument, accepting the float64 that JSON
// decoding produces. Returns ok=false when absent.
func optionalID(args map[string]interface{}, name string) (int64, bool, error) {
	v, ok := args[name]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) || n < 1 {
			return 0, false, errors.New(errors.CategoryValidation, "parameter must be a positive integer: "+name, nil)
		}
		return int64(n), true, nil
	case int:
		if n < 1 {
			return 0, false, errors.New(errors.CategoryValidation, "parameter must be a positive integer: "+name, nil)
		}
		return int64(n), true, nil
	case int64:
		if n < 1 {
			return 0, false, errors.New(errors.CategoryValidation, "parameter must be a positive integer: "+name, nil)
		}
		return n, true, nil
	default:
		return 0, false, errors.New(errors.CategoryValidation, "parameter must be a positive integer: "+name, nil)
	}
}

func copyOptional(args, params map[string]interface{}, names ...string) {
	for _, name := range names {
		if v, ok := args[name]; ok {
			if s, ok := v.(string); ok && s != "" {
				params[name] = s
			}
		}
	}
}
