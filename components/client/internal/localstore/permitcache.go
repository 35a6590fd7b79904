// Package localstore provides the client's on-disk persistence: a bbolt
// cache for the active permit (via internal/platform/mkv) and a SQLite
// relational store, built with Masterminds/squirrel, for images and
// transactions.
package localstore

import (
	"context"

	mzerrors "github.com/yorutsuke/yorutsuke/internal/core/errors"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/permit"
	"github.com/yorutsuke/yorutsuke/internal/platform/mkv"
)

// permitBucket is the bbolt bucket holding one StoredPermit per user.
const permitBucket = "permits"

// PermitCache implements ports.PermitStore over a bbolt-backed mkv.Store.
type PermitCache struct {
	kv *mkv.Store
}

// NewPermitCache wraps an already-open mkv.Store. The caller must have
// opened it with permitBucket among its buckets.
func NewPermitCache(kv *mkv.Store) *PermitCache {
	return &PermitCache{kv: kv}
}

// Load returns the cached StoredPermit for userID, or a zero-value permit
// with a not-found error if none was ever saved.
func (c *PermitCache) Load(_ context.Context, userID ids.UserID) (permit.StoredPermit, error) {
	var stored permit.StoredPermit

	if err := c.kv.Get(permitBucket, userID.String(), &stored); err != nil {
		var notFound mzerrors.EntityNotFoundError
		if isEntityNotFound(err, &notFound) {
			return permit.StoredPermit{}, notFound
		}

		return permit.StoredPermit{}, err
	}

	return stored, nil
}

// Save persists stored as the active permit record for userID.
func (c *PermitCache) Save(_ context.Context, userID ids.UserID, stored permit.StoredPermit) error {
	return c.kv.Put(permitBucket, userID.String(), stored)
}

func isEntityNotFound(err error, target *mzerrors.EntityNotFoundError) bool {
	if e, ok := err.(mzerrors.EntityNotFoundError); ok {
		*target = e
		return true
	}

	return false
}
