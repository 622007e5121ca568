package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/eduloan/internal/domain/application"
	"github.com/geocoder89/eduloan/internal/http/handlers"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type bindErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			JSON   string                `json:"json"`
			Field  string                `json:"field"`
			Fields []handlers.FieldError `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

// setupGin puts gin in test mode with the application rules installed on
// its binding engine.
func setupGin(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		t.Fatalf("unexpected validator engine %T", binding.Validator.Engine())
	}
	if err := application.RegisterValidations(v); err != nil {
		t.Fatalf("register validations: %v", err)
	}
}

func bindRouter(t *testing.T) *gin.Engine {
	t.Helper()
	setupGin(t)

	r := gin.New()
	r.POST("/applications", func(ctx *gin.Context) {
		var req application.Fields
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusCreated)
	})
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBindJSON_ValidationErrorsUseJSONFieldNames(t *testing.T) {
	r := bindRouter(t)

	w := postJSON(r, "/applications", `{"studentName":"K","aadharNumber":"12","panCard":"abcde1234f","cibilScore":120}`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusUnprocessableEntity, w.Body.String())
	}

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}

	if resp.Error.Code != "validation_failed" {
		t.Fatalf("unexpected code: %s", resp.Error.Code)
	}

	wantRules := map[string]string{
		"studentName":  "personname",
		"fatherName":   "required",
		"dateOfBirth":  "required",
		"aadharNumber": "aadhaar",
		"panCard":      "pan",
		"cibilScore":   "min",
	}

	found := map[string]handlers.FieldError{}
	for _, fieldErr := range resp.Error.Details.Fields {
		found[fieldErr.Field] = fieldErr
	}

	for field, rule := range wantRules {
		fieldErr, ok := found[field]
		if !ok {
			t.Fatalf("missing field error for %q: %+v", field, resp.Error.Details.Fields)
		}
		if fieldErr.Rule != rule {
			t.Fatalf("field %q rule mismatch: got %q want %q", field, fieldErr.Rule, rule)
		}
		if fieldErr.Message == "" {
			t.Fatalf("field %q should include a non-empty message", field)
		}
	}

	if msg := found["cibilScore"].Message; msg != "CIBIL score must be between 300 and 900" {
		t.Fatalf("cibilScore message = %q", msg)
	}
	if msg := found["aadharNumber"].Message; msg != "Aadhar number must be 12 digits" {
		t.Fatalf("aadharNumber message = %q", msg)
	}
}

func TestBindJSON_TypeMismatchUsesJSONFieldNames(t *testing.T) {
	r := bindRouter(t)

	w := postJSON(r, "/applications", `{"studentName":"Kavya Iyer","cibilScore":"high"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}

	if resp.Error.Details.JSON != "invalid_json_type" {
		t.Fatalf("expected invalid_json_type, got %q", resp.Error.Details.JSON)
	}
	if resp.Error.Details.Field != "cibilScore" {
		t.Fatalf("expected detail field to be cibilScore, got %q", resp.Error.Details.Field)
	}
	if len(resp.Error.Details.Fields) == 0 || resp.Error.Details.Fields[0].Rule != "type" {
		t.Fatalf("expected a type field error, got %+v", resp.Error.Details.Fields)
	}
}

func TestBindJSON_MalformedBody(t *testing.T) {
	r := bindRouter(t)

	w := postJSON(r, "/applications", `{"studentName":`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v", err)
	}
	if resp.Error.Code != "invalid_request" {
		t.Fatalf("unexpected code: %s", resp.Error.Code)
	}
}
