package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// errBodyNotObject is reported for bodies that are not a single JSON object.
var errBodyNotObject = errors.New("request body must be a JSON object")

func decode(rw http.ResponseWriter, r *http.Request, limit int64, into interface{}) error {
	if limit > 0 {
		r.Body = http.MaxBytesReader(rw, r.Body, limit)
	}

	rawJson, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(rawJson, into)
}

// describeDecodeError turns a decoding failure into a message that is safe
// to show to the client.
func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s must be a %s", typeErr.Field, jsonKind(typeErr.Type.String()))
	}
	return errBodyNotObject.Error()
}

func jsonKind(goType string) string {
	switch goType {
	case "bool":
		return "boolean"
	case "string":
		return "string"
	default:
		return goType
	}
}

func respond(ctx context.Context, rw http.ResponseWriter, status int, data interface{}) {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "handler.respond")
	span.SetAttributes(attribute.Int("http.status", status))
	defer span.End()

	if status == http.StatusNoContent || data == nil {
		rw.WriteHeader(status)
		return
	}

	rawJson, err := json.Marshal(data)
	if err != nil {
		panic("respond-json-marshal:" + err.Error())
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	rw.Write(rawJson)
}

func respondErr(ctx context.Context, rw http.ResponseWriter, status int, msg string) {
	respond(ctx, rw, status, map[string]string{
		"error": msg,
	})
}
