package handlers

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const jsonContentType = "application/json; charset=utf-8"

// RespondJSONWithETag marshals payload once, tags it with a content hash and
// answers 304 when the client already holds that representation.
func RespondJSONWithETag(ctx *gin.Context, status int, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		ctx.JSON(status, payload)
		return
	}
	RespondRawJSONWithETag(ctx, status, raw)
}

// RespondRawJSONWithETag is RespondJSONWithETag for bytes that are already JSON.
func RespondRawJSONWithETag(ctx *gin.Context, status int, raw []byte) {
	tag := contentETag(raw)
	ctx.Header("ETag", tag)

	if matchesETag(ctx.GetHeader("If-None-Match"), tag) {
		ctx.Status(http.StatusNotModified)
		return
	}
	ctx.Data(status, jsonContentType, raw)
}

func contentETag(b []byte) string {
	sum := sha256.Sum256(b)
	return `"` + base64.RawURLEncoding.EncodeToString(sum[:18]) + `"`
}

// matchesETag applies weak comparison, so W/"x" matches "x".
func matchesETag(ifNoneMatch, tag string) bool {
	ifNoneMatch = strings.TrimSpace(ifNoneMatch)
	switch ifNoneMatch {
	case "":
		return false
	case "*":
		return true
	}

	for candidate := range strings.SplitSeq(ifNoneMatch, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == tag {
			return true
		}
	}
	return false
}
