// Package service implements the movie operations on top of a document
// store and an asset manager.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/iliyamo/movie-catalog/internal/asset"
	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/repository"
)

// UpdateMode selects what Update does with an id that does not exist.
type UpdateMode string

const (
	// UpdateStrict rejects unknown ids with repository.ErrMovieNotFound.
	UpdateStrict UpdateMode = "strict"
	// UpdateUpsert creates the record under the caller supplied id.
	UpdateUpsert UpdateMode = "upsert"
)

// ErrImageRequired is returned by Create when images are mandatory and the
// request carried none.  It wraps asset.ErrUploadFailed.
var ErrImageRequired = fmt.Errorf("%w: no image uploaded", asset.ErrUploadFailed)

// Attachment is an uploaded binary payload with its declared extension.
type Attachment struct {
	Body io.Reader
	Ext  string
}

// Assets is the part of asset.Manager the service needs.
type Assets interface {
	Store(r io.Reader, ext string) (string, error)
	ResolveURL(filename string, o asset.Origin) string
	Remove(filename string) error
}

// Notifier is told about every persisted change.  Failures are logged and
// never fail the request.
type Notifier interface {
	Notify(ctx context.Context, ev queue.MovieEvent) error
}

// Options are the per-deployment behaviour switches.
type Options struct {
	UpdateMode   UpdateMode
	RequireImage bool
}

// MovieService serializes every operation on the collection with one mutex,
// so a load-mutate-save sequence never interleaves with another request.
// Notifiers are called after the mutex is released.
type MovieService struct {
	store     repository.Store
	assets    Assets
	opts      Options
	notifiers []Notifier
	log       zerolog.Logger

	mu sync.Mutex
}

// NewMovieService wires a service.  It panics if store or assets is nil.
func NewMovieService(store repository.Store, assets Assets, opts Options, log zerolog.Logger, notifiers ...Notifier) *MovieService {
	if store == nil || assets == nil {
		panic("nil dependency passed to NewMovieService")
	}
	if opts.UpdateMode == "" {
		opts.UpdateMode = UpdateStrict
	}
	return &MovieService{store: store, assets: assets, opts: opts, notifiers: notifiers, log: log}
}

// Mode reports the configured update mode.
func (s *MovieService) Mode() UpdateMode { return s.opts.UpdateMode }

// Ping loads the collection and reports whether that worked.
func (s *MovieService) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.store.Load(ctx)
	return err
}

// List returns every movie in insertion order with images expanded to URLs.
func (s *MovieService) List(ctx context.Context, o asset.Origin) ([]model.Movie, error) {
	s.mu.Lock()
	movies, err := s.store.Load(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]model.Movie, len(movies))
	for i, m := range movies {
		out[i] = s.present(m, o)
	}
	return out, nil
}

// Get returns one movie or repository.ErrMovieNotFound.
func (s *MovieService) Get(ctx context.Context, id int64, o asset.Origin) (model.Movie, error) {
	s.mu.Lock()
	movies, err := s.store.Load(ctx)
	s.mu.Unlock()
	if err != nil {
		return model.Movie{}, err
	}
	m, err := repository.Find(movies, id)
	if err != nil {
		return model.Movie{}, err
	}
	return s.present(m, o), nil
}

// Create stores the attachment (if any), assigns the next id and appends
// the record.
func (s *MovieService) Create(ctx context.Context, fields model.Fields, att *Attachment, o asset.Origin) (model.Movie, error) {
	if att == nil && s.opts.RequireImage {
		return model.Movie{}, ErrImageRequired
	}
	m, err := s.create(ctx, fields, att)
	if err != nil {
		return model.Movie{}, err
	}
	s.log.Info().Int64("movie_id", m.ID).Msg("movie created")
	s.notify(ctx, queue.ActionCreated, m)
	return s.present(m, o), nil
}

func (s *MovieService) create(ctx context.Context, fields model.Fields, att *Attachment) (model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	movies, err := s.store.Load(ctx)
	if err != nil {
		return model.Movie{}, err
	}
	id, err := repository.NextID(movies)
	if err != nil {
		return model.Movie{}, err
	}

	m := model.Movie{ID: id, Fields: callerFields(fields)}
	if att != nil {
		name, err := s.assets.Store(att.Body, att.Ext)
		if err != nil {
			return model.Movie{}, err
		}
		m.Fields[model.FieldImage] = model.String(name)
	}

	if err := s.store.Save(ctx, append(movies, m)); err != nil {
		s.discardAsset(m)
		return model.Movie{}, err
	}
	return m, nil
}

// Update replaces every non-id field of the movie with fields.  It is not a
// merge: fields absent from the request disappear, including the image
// unless a new attachment is supplied.  In upsert mode an unknown id is
// created under that id and created is true.
func (s *MovieService) Update(ctx context.Context, id int64, fields model.Fields, att *Attachment, o asset.Origin) (model.Movie, bool, error) {
	if id <= 0 {
		return model.Movie{}, false, fmt.Errorf("movie %d: %w", id, repository.ErrMovieNotFound)
	}
	m, created, err := s.update(ctx, id, fields, att)
	if err != nil {
		return model.Movie{}, false, err
	}
	if created {
		s.log.Info().Int64("movie_id", id).Msg("movie created by update")
		s.notify(ctx, queue.ActionCreated, m)
	} else {
		s.log.Info().Int64("movie_id", id).Msg("movie updated")
		s.notify(ctx, queue.ActionUpdated, m)
	}
	return s.present(m, o), created, nil
}

func (s *MovieService) update(ctx context.Context, id int64, fields model.Fields, att *Attachment) (m model.Movie, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	movies, err := s.store.Load(ctx)
	if err != nil {
		return model.Movie{}, false, err
	}

	idx := repository.IndexOf(movies, id)
	if idx < 0 && s.opts.UpdateMode != UpdateUpsert {
		return model.Movie{}, false, fmt.Errorf("movie %d: %w", id, repository.ErrMovieNotFound)
	}

	m = model.Movie{ID: id, Fields: callerFields(fields)}
	if att != nil {
		name, err := s.assets.Store(att.Body, att.Ext)
		if err != nil {
			return model.Movie{}, false, err
		}
		m.Fields[model.FieldImage] = model.String(name)
	}

	var previous model.Movie
	if idx >= 0 {
		previous = movies[idx]
		movies[idx] = m
	} else {
		created = true
		movies = append(movies, m)
	}

	if err := s.store.Save(ctx, movies); err != nil {
		s.discardAsset(m)
		return model.Movie{}, false, err
	}

	if old, ok := previous.Image(); ok {
		if cur, _ := m.Image(); cur != old {
			s.discardAsset(previous)
		}
	}
	return m, created, nil
}

// Delete removes the movie and then its image file.
func (s *MovieService) Delete(ctx context.Context, id int64) error {
	removed, err := s.remove(ctx, id)
	if err != nil {
		return err
	}
	s.log.Info().Int64("movie_id", id).Msg("movie deleted")
	s.notify(ctx, queue.ActionDeleted, removed)
	return nil
}

func (s *MovieService) remove(ctx context.Context, id int64) (model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	movies, err := s.store.Load(ctx)
	if err != nil {
		return model.Movie{}, err
	}
	idx := repository.IndexOf(movies, id)
	if idx < 0 {
		return model.Movie{}, fmt.Errorf("movie %d: %w", id, repository.ErrMovieNotFound)
	}
	removed := movies[idx]
	movies = append(movies[:idx], movies[idx+1:]...)

	if err := s.store.Save(ctx, movies); err != nil {
		return model.Movie{}, err
	}
	s.discardAsset(removed)
	return removed, nil
}

func (s *MovieService) present(m model.Movie, o asset.Origin) model.Movie {
	name, ok := m.Image()
	if !ok {
		return m
	}
	return m.WithImage(s.assets.ResolveURL(name, o))
}

// discardAsset removes the image of a record that is no longer persisted.
func (s *MovieService) discardAsset(m model.Movie) {
	name, ok := m.Image()
	if !ok {
		return
	}
	if err := s.assets.Remove(name); err != nil {
		s.log.Warn().Err(err).Str("image", name).Msg("could not remove asset")
	}
}

// notify runs after the collection lock is released.  The change is already
// committed, so a caller that went away must not cancel the notifications.
func (s *MovieService) notify(ctx context.Context, action string, m model.Movie) {
	if len(s.notifiers) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	title := ""
	if v, ok := m.Fields["title"]; ok {
		title = v.Text()
	}
	image, _ := m.Image()
	ev := queue.NewMovieEvent(action, m.ID, title, image)
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			s.log.Warn().Err(err).Str("action", action).Int64("movie_id", m.ID).Msg("change notification failed")
		}
	}
}

// callerFields copies the request fields without the reserved keys: the id
// comes from the store and the image only from an upload.
func callerFields(f model.Fields) model.Fields {
	out := f.Clone()
	delete(out, model.FieldID)
	delete(out, model.FieldImage)
	return out
}

// IsNotFound reports whether err means the movie does not exist.
func IsNotFound(err error) bool { return errors.Is(err, repository.ErrMovieNotFound) }
