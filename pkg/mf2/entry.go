// Package mf2 implements the Microformats2 entry model used by the
// Micropub endpoints: the canonical {type, properties} document shape,
// conversion from flat form data, request validation, and the
// update-operation engine.
package mf2

import (
	"fmt"
	"net/url"

	"github.com/indiepub/indiepub/pkg/errors"
)

// Entry is a Microformats2 document: an ordered list of vocabulary tags
// and a property bag. Every property value is a sequence, even when
// conceptually singular; callers normalize scalars before storage.
type Entry struct {
	Type       []string         `json:"type"`
	Properties map[string][]any `json:"properties"`
}

// HasAnyProperty reports whether at least one of the named properties is
// present with a non-empty value sequence.
func (e *Entry) HasAnyProperty(names ...string) bool {
	for _, name := range names {
		if len(e.Properties[name]) > 0 {
			return true
		}
	}
	return false
}

// FilterProperties returns a copy of the entry whose property bag is
// reduced to the requested keys. Kept properties retain their full value
// sequence. An empty filter list returns the entry unchanged.
func (e *Entry) FilterProperties(names []string) *Entry {
	if len(names) == 0 {
		return e
	}
	filtered := &Entry{
		Type:       e.Type,
		Properties: make(map[string][]any, len(names)),
	}
	for _, name := range names {
		if values, ok := e.Properties[name]; ok {
			filtered.Properties[name] = values
		}
	}
	return filtered
}

// FromForm converts decoded flat form data into an entry. The "h" key
// selects the vocabulary (default "entry") and is dropped along with
// "action"; every remaining value is wrapped into a value sequence.
func FromForm(form map[string]any) *Entry {
	vocabulary := "entry"
	if h, ok := form["h"].(string); ok && h != "" {
		vocabulary = h
	}

	properties := make(map[string][]any, len(form))
	for key, value := range form {
		if key == "h" || key == "action" {
			continue
		}
		properties[key] = toValueSequence(value)
	}

	return &Entry{
		Type:       []string{"h-" + vocabulary},
		Properties: properties,
	}
}

// toValueSequence normalizes a decoded value to the one-or-more-element
// sequence form the entry invariant requires.
func toValueSequence(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		seq := make([]any, len(v))
		for i, s := range v {
			seq[i] = s
		}
		return seq
	default:
		return []any{v}
	}
}

// ValidateEntry checks the structural shape of a decoded MF2 document:
// "type" must be a non-empty sequence of strings and "properties" a
// mapping from string keys to value sequences. Values themselves are
// arbitrary; semantic rules live with the protocol handlers.
func ValidateEntry(raw map[string]any) (*Entry, *errors.Error) {
	rawType, ok := raw["type"]
	if !ok {
		return nil, errors.NewInvalidRequestError("entry is missing a type", nil)
	}
	typeSeq, ok := rawType.([]any)
	if !ok || len(typeSeq) == 0 {
		return nil, errors.NewInvalidRequestError("entry type must be a non-empty array", nil)
	}
	types := make([]string, len(typeSeq))
	for i, t := range typeSeq {
		s, ok := t.(string)
		if !ok {
			return nil, errors.NewInvalidRequestError("entry type values must be strings", nil)
		}
		types[i] = s
	}

	rawProps, ok := raw["properties"]
	if !ok {
		return nil, errors.NewInvalidRequestError("entry is missing properties", nil)
	}
	propsMap, ok := rawProps.(map[string]any)
	if !ok {
		return nil, errors.NewInvalidRequestError("entry properties must be an object", nil)
	}

	properties := make(map[string][]any, len(propsMap))
	for key, value := range propsMap {
		seq, ok := value.([]any)
		if !ok {
			return nil, errors.NewInvalidRequestError(
				fmt.Sprintf("property %q must be an array of values", key), nil)
		}
		properties[key] = seq
	}

	return &Entry{Type: types, Properties: properties}, nil
}

// Action identifies a Micropub action submitted alongside a target URL.
type Action string

// Supported actions.
const (
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionUndelete Action = "undelete"
)

// ActionRequest is the parsed form of a request carrying an "action"
// field. Update is only set for ActionUpdate.
type ActionRequest struct {
	Action Action
	URL    string
	Update *UpdateSpec
}

// UpdateSpec holds the replace/add/delete clauses of an update request.
// The delete clause arrives in one of two wire shapes: a list of property
// names (whole-property deletes) or a property-to-values mapping
// (value-scoped deletes). Both are preserved here.
type UpdateSpec struct {
	Replace          map[string][]any
	Add              map[string][]any
	DeleteProperties []string
	DeleteValues     map[string][]any
}

// ParseAction validates a decoded request body holding an "action" field
// and returns the tagged request.
func ParseAction(raw map[string]any) (*ActionRequest, *errors.Error) {
	actionStr, ok := raw["action"].(string)
	if !ok || actionStr == "" {
		return nil, errors.NewInvalidRequestError("missing action", nil)
	}

	action := Action(actionStr)
	switch action {
	case ActionUpdate, ActionDelete, ActionUndelete:
	default:
		return nil, errors.NewInvalidRequestError(
			fmt.Sprintf("unsupported action %q", actionStr), nil)
	}

	targetURL, ok := raw["url"].(string)
	if !ok || targetURL == "" {
		return nil, errors.NewInvalidRequestError("missing url", nil)
	}
	if !IsAbsoluteURL(targetURL) {
		return nil, errors.NewInvalidRequestError(
			fmt.Sprintf("url must be absolute, got %q", targetURL), nil)
	}

	request := &ActionRequest{Action: action, URL: targetURL}
	if action != ActionUpdate {
		return request, nil
	}

	spec := &UpdateSpec{}
	var err *errors.Error
	if spec.Replace, err = parseClauseMap(raw["replace"], "replace"); err != nil {
		return nil, err
	}
	if spec.Add, err = parseClauseMap(raw["add"], "add"); err != nil {
		return nil, err
	}

	switch deleteClause := raw["delete"].(type) {
	case nil:
	case []any:
		for _, item := range deleteClause {
			name, ok := item.(string)
			if !ok {
				return nil, errors.NewInvalidRequestError(
					"delete list entries must be property names", nil)
			}
			spec.DeleteProperties = append(spec.DeleteProperties, name)
		}
	case map[string]any:
		if spec.DeleteValues, err = parseClauseMap(deleteClause, "delete"); err != nil {
			return nil, err
		}
	default:
		return nil, errors.NewInvalidRequestError(
			"delete must be a list of property names or a property map", nil)
	}

	request.Update = spec
	return request, nil
}

// parseClauseMap validates a replace/add/delete clause: a mapping from
// property names to value sequences. Scalar values are normalized into
// single-element sequences.
func parseClauseMap(raw any, clause string) (map[string][]any, *errors.Error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.NewInvalidRequestError(
			fmt.Sprintf("%s clause must be an object", clause), nil)
	}
	result := make(map[string][]any, len(m))
	for key, value := range m {
		result[key] = toValueSequence(value)
	}
	return result, nil
}

// IsAbsoluteURL reports whether raw parses as an absolute URL with a host.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs() && u.Host != ""
}
