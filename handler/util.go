package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldError is a 400 carrying the offending field names.
type fieldError struct {
	msg    string
	fields []string
}

func (fe *fieldError) Error() string {
	return fmt.Sprintf("%s: %s", fe.msg, strings.Join(fe.fields, ", "))
}

func missingFields(fields ...string) error {
	sort.Strings(fields)
	return &fieldError{msg: "missing required fields", fields: fields}
}

// checkStruct runs the validator and folds its errors into a fieldError.
func checkStruct(ctx context.Context, v interface{}) error {
	err := validate.StructCtx(ctx, v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		invalid = append(invalid, fe.Field())
	}
	if len(missing) > 0 {
		return missingFields(missing...)
	}
	sort.Strings(invalid)
	return &fieldError{msg: "invalid fields", fields: invalid}
}

func decode(r *http.Request, into interface{}) error {
	rawJson, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(rawJson) == 0 {
		return errors.New("request body is empty")
	}
	return json.Unmarshal(rawJson, into)
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("ID is not in its proper form")
	}
	return id, nil
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

func respondErr(ctx context.Context, rw http.ResponseWriter, status int, err error) {
	body := map[string]interface{}{
		"code":  http.StatusText(status),
		"error": err.Error(),
	}

	var fe *fieldError
	if errors.As(err, &fe) {
		body["fields"] = fe.fields
	}

	respond(ctx, rw, status, body)
}

// respondInternal hides err from the caller; it is expected to be logged.
func respondInternal(ctx context.Context, rw http.ResponseWriter) {
	respondErr(ctx, rw, http.StatusInternalServerError, errors.New("internal server error"))
}
