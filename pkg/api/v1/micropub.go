// Package v1 contains the HTTP handlers for the Micropub protocol.
package v1

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/indiepub/indiepub/pkg/auth"
	"github.com/indiepub/indiepub/pkg/config"
	"github.com/indiepub/indiepub/pkg/errors"
	"github.com/indiepub/indiepub/pkg/logger"
	"github.com/indiepub/indiepub/pkg/media"
	"github.com/indiepub/indiepub/pkg/mf2"
	"github.com/indiepub/indiepub/pkg/parser"
	"github.com/indiepub/indiepub/pkg/storage"
)

// Config carries the resolved settings the Micropub handlers consume.
// It is assembled once at server startup and read-only afterwards.
type Config struct {
	// SiteURL is the canonical site identity. Update and delete targets
	// must share its origin.
	SiteURL *url.URL

	// MediaEndpoint is the absolute media-endpoint URL advertised by q=config.
	MediaEndpoint string

	// SyndicateTo lists the syndication targets advertised by q=config
	// and q=syndicate-to.
	SyndicateTo []config.SyndicateTarget

	// EnforceScopes toggles per-operation scope checks.
	EnforceScopes bool

	// EnableUpdates and EnableDeletes gate the corresponding actions.
	EnableUpdates bool
	EnableDeletes bool

	// MaxMediaBytes bounds a single uploaded file.
	MaxMediaBytes int64

	// AllowedMediaTypes is the MIME allow-list for uploaded files.
	AllowedMediaTypes []string
}

// MicropubRouter sets up the Micropub endpoint routes.
func MicropubRouter(cfg Config, store storage.Adapter, mediaStore storage.MediaAdapter) http.Handler {
	routes := &micropubRoutes{cfg: cfg, store: store, media: mediaStore}
	r := chi.NewRouter()
	r.Get("/", routes.query)
	r.Post("/", routes.handlePost)
	return r
}

type micropubRoutes struct {
	cfg   Config
	store storage.Adapter
	media storage.MediaAdapter
}

// authorize returns the request's verification, enforcing the required
// scope when scope enforcement is on. On failure the response has
// already been written.
func (s *micropubRoutes) authorize(w http.ResponseWriter, r *http.Request, scope string) (*auth.Verification, bool) {
	verification, ok := auth.VerificationFromContext(r.Context())
	if !ok {
		writeError(w, errors.NewInvalidTokenError("missing token verification", nil))
		return nil, false
	}
	if scope != "" && s.cfg.EnforceScopes && !verification.HasScope(scope) {
		writeInsufficientScope(w, scope)
		return nil, false
	}
	return verification, true
}

// handlePost dispatches a Micropub POST: a body carrying an "action"
// field is an update, delete or undelete; anything else is a create.
func (s *micropubRoutes) handlePost(w http.ResponseWriter, r *http.Request) {
	result, perr := parser.Parse(r, parser.Options{MaxFileBytes: s.cfg.MaxMediaBytes})
	if perr != nil {
		writeError(w, perr)
		return
	}

	if _, ok := result.Data["action"]; ok {
		s.handleAction(w, r, result.Data)
		return
	}
	s.createPost(w, r, result)
}

func (s *micropubRoutes) handleAction(w http.ResponseWriter, r *http.Request, data map[string]any) {
	request, perr := mf2.ParseAction(data)
	if perr != nil {
		writeError(w, perr)
		return
	}

	switch request.Action {
	case mf2.ActionUpdate:
		s.updatePost(w, r, request)
	case mf2.ActionDelete, mf2.ActionUndelete:
		s.deletePost(w, r, request)
	}
}

func (s *micropubRoutes) createPost(w http.ResponseWriter, r *http.Request, result *parser.Result) {
	if _, ok := s.authorize(w, r, auth.ScopeCreate); !ok {
		return
	}

	var entry *mf2.Entry
	if _, structured := result.Data["type"]; structured {
		var perr *errors.Error
		if entry, perr = mf2.ValidateEntry(result.Data); perr != nil {
			writeError(w, perr)
			return
		}
	} else {
		entry = mf2.FromForm(result.Data)
	}

	if perr := s.attachFiles(r, entry, result.Files); perr != nil {
		writeError(w, perr)
		return
	}

	if !entry.HasAnyProperty("content", "name", "photo") {
		writeError(w, errors.NewInvalidRequestError(
			"entry must carry at least one of content, name or photo", nil))
		return
	}

	meta, err := s.store.CreatePost(r.Context(), entry)
	if err != nil {
		writeError(w, errors.FromAdapter(err))
		return
	}

	logger.Infow("post created", "url", meta.URL)
	w.Header().Set("Location", meta.URL)
	w.WriteHeader(http.StatusCreated)
}

// attachFiles stores uploaded file parts through the media adapter and
// appends the resulting URLs to the matching entry property.
func (s *micropubRoutes) attachFiles(r *http.Request, entry *mf2.Entry, files []*parser.File) *errors.Error {
	for _, file := range files {
		property := strings.TrimSuffix(file.FieldName, "[]")
		switch property {
		case "photo", "video", "audio":
		default:
			return errors.NewInvalidRequestError(
				fmt.Sprintf("unexpected file field %q", file.FieldName), nil)
		}
		if !media.AllowedType(file.ContentType, s.cfg.AllowedMediaTypes) {
			return errors.NewUnsupportedMediaTypeError(
				fmt.Sprintf("media type %q is not allowed", file.ContentType), nil)
		}

		filename := media.Filename(file.Filename, file.Data, time.Now())
		fileURL, err := s.media.SaveFile(r.Context(), filename, file.Data)
		if err != nil {
			return errors.FromAdapter(err)
		}
		entry.Properties[property] = append(entry.Properties[property], fileURL)
	}
	return nil
}

func (s *micropubRoutes) updatePost(w http.ResponseWriter, r *http.Request, request *mf2.ActionRequest) {
	if !s.cfg.EnableUpdates {
		writeError(w, errors.NewInvalidRequestError("updates are disabled", nil))
		return
	}
	if _, ok := s.authorize(w, r, auth.ScopeUpdate); !ok {
		return
	}
	if !s.ownsURL(request.URL) {
		writeError(w, errors.NewForbiddenError(
			fmt.Sprintf("%s is not owned by this site", request.URL), nil))
		return
	}

	ops := mf2.DeriveOperations(request.Update)
	if _, err := s.store.UpdatePost(r.Context(), request.URL, ops); err != nil {
		writeError(w, errors.FromAdapter(err))
		return
	}

	logger.Infow("post updated", "url", request.URL)
	w.WriteHeader(http.StatusNoContent)
}

// deletePost handles both delete and undelete. Undelete requires the
// same delete scope rather than a scope of its own.
func (s *micropubRoutes) deletePost(w http.ResponseWriter, r *http.Request, request *mf2.ActionRequest) {
	if !s.cfg.EnableDeletes {
		writeError(w, errors.NewInvalidRequestError("deletes are disabled", nil))
		return
	}
	if _, ok := s.authorize(w, r, auth.ScopeDelete); !ok {
		return
	}
	if !s.ownsURL(request.URL) {
		writeError(w, errors.NewForbiddenError(
			fmt.Sprintf("%s is not owned by this site", request.URL), nil))
		return
	}

	var err error
	if request.Action == mf2.ActionDelete {
		err = s.store.DeletePost(r.Context(), request.URL)
	} else {
		err = s.store.UndeletePost(r.Context(), request.URL)
	}
	if err != nil {
		writeError(w, errors.FromAdapter(err))
		return
	}

	logger.Infow("post "+string(request.Action)+"d", "url", request.URL)
	w.WriteHeader(http.StatusNoContent)
}

// query answers the Micropub GET queries. A valid token is required but
// no scope is checked: read access is open to any authenticated client.
func (s *micropubRoutes) query(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, ""); !ok {
		return
	}

	switch q := r.URL.Query().Get("q"); q {
	case "config":
		writeJSON(w, map[string]any{
			"media-endpoint": s.cfg.MediaEndpoint,
			"syndicate-to":   s.syndicateTargets(),
		})
	case "syndicate-to":
		writeJSON(w, map[string]any{"syndicate-to": s.syndicateTargets()})
	case "source":
		s.querySource(w, r)
	default:
		writeError(w, errors.NewInvalidRequestError(
			fmt.Sprintf("unsupported query %q", q), nil))
	}
}

func (s *micropubRoutes) querySource(w http.ResponseWriter, r *http.Request) {
	postURL := r.URL.Query().Get("url")
	if postURL == "" {
		writeError(w, errors.NewInvalidRequestError("missing url parameter", nil))
		return
	}
	if !mf2.IsAbsoluteURL(postURL) {
		writeError(w, errors.NewInvalidRequestError(
			fmt.Sprintf("url must be absolute, got %q", postURL), nil))
		return
	}

	properties := r.URL.Query()["properties[]"]
	properties = append(properties, r.URL.Query()["properties"]...)

	entry, err := s.store.GetPost(r.Context(), postURL, properties)
	if err != nil {
		writeError(w, errors.FromAdapter(err))
		return
	}

	if len(properties) > 0 {
		writeJSON(w, map[string]any{"properties": entry.Properties})
		return
	}
	writeJSON(w, map[string]any{"type": entry.Type, "properties": entry.Properties})
}

// syndicateTargets never returns nil so the JSON field is always a list.
func (s *micropubRoutes) syndicateTargets() []config.SyndicateTarget {
	if s.cfg.SyndicateTo == nil {
		return []config.SyndicateTarget{}
	}
	return s.cfg.SyndicateTo
}

// ownsURL reports whether raw shares the configured site's origin.
func (s *micropubRoutes) ownsURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == s.cfg.SiteURL.Scheme && u.Host == s.cfg.SiteURL.Host
}
