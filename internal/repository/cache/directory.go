package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/jobboard-api/internal/model"
	"github.com/jwalitptl/jobboard-api/internal/repository"
)

// Directory is a read-through cache in front of a DirectoryRepository.
// Only successful lookups are cached, so a job created after a miss is
// visible on the next call.
type Directory struct {
	next  repository.DirectoryRepository
	cache *gocache.Cache
}

func NewDirectory(next repository.DirectoryRepository, ttl, cleanupInterval time.Duration) *Directory {
	return &Directory{
		next:  next,
		cache: gocache.New(ttl, cleanupInterval),
	}
}

var _ repository.DirectoryRepository = (*Directory)(nil)

func (d *Directory) GetCV(ctx context.Context, id uuid.UUID) (*model.CV, error) {
	return readThrough(d.cache, "cv:"+id.String(), func() (*model.CV, error) {
		return d.next.GetCV(ctx, id)
	})
}

func (d *Directory) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	return readThrough(d.cache, "job:"+id.String(), func() (*model.Job, error) {
		return d.next.GetJob(ctx, id)
	})
}

func (d *Directory) ListCompanyHR(ctx context.Context, companyID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := readThrough(d.cache, "hr:"+companyID.String(), func() ([]uuid.UUID, error) {
		return d.next.ListCompanyHR(ctx, companyID)
	})
	if err != nil {
		return nil, err
	}
	// callers may append to the slice; hand out a copy
	return append([]uuid.UUID(nil), ids...), nil
}

func (d *Directory) GetContact(ctx context.Context, userID uuid.UUID) (*model.Contact, error) {
	return readThrough(d.cache, "contact:"+userID.String(), func() (*model.Contact, error) {
		return d.next.GetContact(ctx, userID)
	})
}

func readThrough[T any](c *gocache.Cache, key string, load func() (T, error)) (T, error) {
	if cached, found := c.Get(key); found {
		return cached.(T), nil
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	c.Set(key, value, gocache.DefaultExpiration)
	return value, nil
}
