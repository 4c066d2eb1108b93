package v1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/indiepub/indiepub/pkg/auth"
	"github.com/indiepub/indiepub/pkg/errors"
	"github.com/indiepub/indiepub/pkg/logger"
	"github.com/indiepub/indiepub/pkg/media"
	"github.com/indiepub/indiepub/pkg/parser"
	"github.com/indiepub/indiepub/pkg/storage"
)

// MediaRouter sets up the media endpoint routes.
func MediaRouter(cfg Config, mediaStore storage.MediaAdapter) http.Handler {
	routes := &mediaRoutes{cfg: cfg, media: mediaStore}
	r := chi.NewRouter()
	r.Post("/", routes.upload)
	return r
}

type mediaRoutes struct {
	cfg   Config
	media storage.MediaAdapter
}

// upload stores one multipart file part. The media scope is required
// strictly; the create scope does not substitute.
func (s *mediaRoutes) upload(w http.ResponseWriter, r *http.Request) {
	verification, ok := auth.VerificationFromContext(r.Context())
	if !ok {
		writeError(w, errors.NewInvalidTokenError("missing token verification", nil))
		return
	}
	if s.cfg.EnforceScopes && !verification.HasScope(auth.ScopeMedia) {
		writeInsufficientScope(w, auth.ScopeMedia)
		return
	}

	result, perr := parser.Parse(r, parser.Options{MaxFileBytes: s.cfg.MaxMediaBytes})
	if perr != nil {
		writeError(w, perr)
		return
	}
	if len(result.Files) == 0 {
		writeError(w, errors.NewInvalidRequestError("no file in request", nil))
		return
	}

	file := result.Files[0]
	if !media.AllowedType(file.ContentType, s.cfg.AllowedMediaTypes) {
		writeError(w, errors.NewUnsupportedMediaTypeError(
			fmt.Sprintf("media type %q is not allowed", file.ContentType), nil))
		return
	}

	filename := media.Filename(file.Filename, file.Data, time.Now())
	fileURL, err := s.media.SaveFile(r.Context(), filename, file.Data)
	if err != nil {
		writeError(w, errors.FromAdapter(err))
		return
	}

	logger.Infow("media uploaded", "url", fileURL, "bytes", len(file.Data))
	w.Header().Set("Location", fileURL)
	w.WriteHeader(http.StatusCreated)
}
