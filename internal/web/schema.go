// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// maxBodyBytes caps request bodies. Larger bodies are unprocessable.
const maxBodyBytes = 1 << 20

// errUnprocessable marks a body that is not structurally a valid request.
var errUnprocessable = errors.New("unprocessable entity")

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Requires2FA bool   `json:"requires2FA"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verify2FARequest struct {
	Email          string `json:"email"`
	LoginAttemptID string `json:"loginAttemptId"`
	TwoFACode      string `json:"2FACode"`
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

const (
	schemaSignup      = "signup"
	schemaLogin       = "login"
	schemaVerify2FA   = "verify-2fa"
	schemaVerifyToken = "verify-token"
)

// schemaSet holds one compiled JSON Schema per request type. Every field
// is required and must have the declared JSON type; unknown fields pass.
type schemaSet struct {
	schemas map[string]*jschema.Schema
}

func requestTypes() map[string]any {
	return map[string]any{
		schemaSignup:      &signupRequest{},
		schemaLogin:       &loginRequest{},
		schemaVerify2FA:   &verify2FARequest{},
		schemaVerifyToken: &verifyTokenRequest{},
	}
}

// generateSchema reflects the JSON Schema document for v.
func generateSchema(v any) ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		Anonymous:                 true,
		AllowAdditionalProperties: true,
	}
	data, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").Wrap(err)
	}
	return data, nil
}

// RequestSchemas returns the indented JSON Schema document of every API
// request body, keyed by schema name.
func RequestSchemas() (map[string][]byte, error) {
	out := make(map[string][]byte)
	for name, v := range requestTypes() {
		data, err := generateSchema(v)
		if err != nil {
			return nil, oops.With("schema", name).Wrap(err)
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return nil, oops.Code("SCHEMA_GENERATE_FAILED").With("schema", name).Wrap(err)
		}
		buf.WriteByte('\n')
		out[name] = buf.Bytes()
	}
	return out, nil
}

func compileSchemas() (*schemaSet, error) {
	c := jschema.NewCompiler()
	set := &schemaSet{schemas: make(map[string]*jschema.Schema)}

	for name, v := range requestTypes() {
		data, err := generateSchema(v)
		if err != nil {
			return nil, oops.With("schema", name).Wrap(err)
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
		}
		url := name + ".json"
		if err := c.AddResource(url, doc); err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
		}
		sch, err := c.Compile(url)
		if err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
		}
		set.schemas[name] = sch
	}
	return set, nil
}

// decode reads r's body, validates it against the named schema and
// unmarshals it into dst. Any failure matches errUnprocessable.
func (s *schemaSet) decode(w http.ResponseWriter, r *http.Request, name string, dst any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return unprocessable(name, "read body", err)
	}

	inst, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return unprocessable(name, "parse json", err)
	}
	if err := s.schemas[name].Validate(inst); err != nil {
		return unprocessable(name, "validate schema", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return unprocessable(name, "decode request", err)
	}
	return nil
}

func unprocessable(name, operation string, cause error) error {
	return oops.Code("REQUEST_UNPROCESSABLE").
		With("request", name).
		With("operation", operation).
		With("cause", cause.Error()).
		Wrap(errUnprocessable)
}
