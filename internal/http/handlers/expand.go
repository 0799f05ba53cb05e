package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
)

// wantsExpand reports ?expand=true (or 1).
func wantsExpand(ctx *gin.Context) bool {
	v, err := strconv.ParseBool(ctx.Query("expand"))
	return err == nil && v
}

// expandRefs loads every id referenced by items in one read and returns a
// lookup keyed by id. Dangling ids are simply absent from the map.
func expandRefs[T any](ctx context.Context, ids []string, getMany func(context.Context, []string) ([]T, error), idOf func(T) string) (map[string]T, error) {
	found, err := getMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]T, len(found))
	for _, v := range found {
		byID[idOf(v)] = v
	}
	return byID, nil
}

// resolveOrdered maps ids through byID keeping order and duplicates.
func resolveOrdered[T any](ids []string, byID map[string]T) []T {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out
}
