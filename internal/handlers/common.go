package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	xhttp "github.com/graphcs/flexpay/pkg/http"
)

// validate is shared by every handler; fields are declared on the
// model request structs.
var validate = validator.New()

// userIDHeader identifies the acting user. Auth itself is terminated
// upstream; the gateway injects the verified id.
const userIDHeader = "X-User-ID"

func actingUserID(ctx *xhttp.RequestCtx) (int64, bool) {
	v := ctx.Request.Header.Peek(userIDHeader)
	if len(v) == 0 {
		writeError(ctx, xhttp.StatusUnauthorized, "missing "+userIDHeader+" header")
		return 0, false
	}
	id, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil || id <= 0 {
		writeError(ctx, xhttp.StatusUnauthorized, "invalid "+userIDHeader+" header")
		return 0, false
	}
	return id, true
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

// readValidJSON unmarshals and validates in one step so handlers reject
// malformed and invalid payloads the same way.
func readValidJSON(ctx *xhttp.RequestCtx, dst any) bool {
	if err := readJSON(ctx, dst); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// pathInt64 reads a {name} route segment.
func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	s, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(s, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
