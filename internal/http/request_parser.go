package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const (
	maxBodyBytes   = 1 << 20
	maxBackupBytes = 8 << 20
)

var errEmptyBody = errors.New("request body is empty")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// textValue accepts a JSON string or number and keeps it as text, so form
// fields reach the domain parsers exactly as the user typed them.
type textValue string

func (t *textValue) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		*t = textValue(sanitizeInput(v))
	case float64:
		*t = textValue(strconv.FormatFloat(v, 'f', -1, 64))
	case nil:
		*t = ""
	default:
		return fmt.Errorf("expected string or number, got %T", raw)
	}
	return nil
}

func (t textValue) String() string { return string(t) }

type startRequest struct {
	Theme       string `json:"theme" validate:"required,oneof=dark light"`
	ChallengeID string `json:"challengeId" validate:"max=128"`
}

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

type profileRequest struct {
	Name    string `json:"name" validate:"max=200"`
	Phone   string `json:"phone" validate:"max=50"`
	Address string `json:"address" validate:"max=500"`
	Email   string `json:"email" validate:"max=200"`
}

type selectRequest struct {
	ID string `json:"id" validate:"required,max=128"`
}

type customChallengeRequest struct {
	Mode      string    `json:"mode" validate:"required,oneof=range progression"`
	Start     textValue `json:"start"`
	End       textValue `json:"end"`
	Increment textValue `json:"increment"`
	Count     textValue `json:"count"`
}

type withdrawRequest struct {
	Amount textValue `json:"amount" validate:"required"`
}

type adviceRequest struct {
	Query string `json:"query" validate:"max=4000"`
}

type backupRequest struct {
	Confirm bool            `json:"confirm"`
	Backup  json.RawMessage `json:"backup" validate:"required"`
}

// decodeJSON reads at most limit bytes of JSON into dst and validates it.
// An empty body is allowed when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, limit int64, allowEmpty bool) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return &requestError{msg: "request body too large or unreadable", err: err}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		if !allowEmpty {
			return &requestError{msg: errEmptyBody.Error(), err: errEmptyBody}
		}
	} else if err := json.Unmarshal(body, dst); err != nil {
		return &requestError{msg: "malformed JSON body", err: err}
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// slotValue reads the {value} path parameter.
func slotValue(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "value")
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, &inputError{msg: fmt.Sprintf("slot %q is not an integer", raw)}
	}
	return v, nil
}

// sanitizeInput trims and drops control characters except tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// requestError is a body that could not be read or decoded.
type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string { return e.msg + ": " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// inputError is a well-formed request with unacceptable values.
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &inputError{msg: err.Error()}
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return &inputError{msg: strings.Join(parts, "; ")}
}
