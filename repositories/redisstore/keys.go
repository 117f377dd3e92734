// Package redisstore is the remote live variant of the feed stores, on Redis.
//
// Layout, under a namespace:
//
//	{ns}:seq           INCR counter, the arrival order
//	{ns}:last          last createdAt in unix milliseconds
//	{ns}:index         sorted set of message ids scored by sequence
//	{ns}:msg:{id}      hash: record, created_at, seq, token
//	{ns}:tokens        hash token -> id
//	{ns}:changes       pub/sub channel, one publish per write
//	{ns}:media:{loc}   hash: content_type, data, stored_at
//
// createdAt is clamped to never go below {ns}:last, so sequence order and
// createdAt order agree.
package redisstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"public-feed/errors"
)

const DefaultNamespace = "feed"

type keys struct {
	ns string
}

func (k keys) seq() string                 { return k.ns + ":seq" }
func (k keys) last() string                { return k.ns + ":last" }
func (k keys) index() string               { return k.ns + ":index" }
func (k keys) tokens() string              { return k.ns + ":tokens" }
func (k keys) changes() string             { return k.ns + ":changes" }
func (k keys) message(id string) string    { return k.ns + ":msg:" + id }
func (k keys) media(locator string) string { return k.ns + ":media:" + locator }

var forbiddenPrefixes = []string{"NOPERM", "NOAUTH", "WRONGPASS", "READONLY"}

// classify sorts redis failures into the two store classes.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) ||
		stderrors.Is(err, errors.ErrNotFound) {
		return err
	}
	// Server replies start with the error code
	for _, prefix := range forbiddenPrefixes {
		if strings.HasPrefix(err.Error(), prefix) {
			return fmt.Errorf("%w: %w", errors.ErrStoreForbidden, err)
		}
	}
	return fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
}
