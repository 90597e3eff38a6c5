// Package httpjson concentra a escrita/leitura de JSON na borda HTTP.
package httpjson

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// MaxBodyBytes limita o corpo aceito pelos endpoints JSON.
const MaxBodyBytes = 64 << 10

var ErrEmptyBody = errors.New("empty body")

// ErrorBody é o formato de erro que atravessa a borda.
type ErrorBody struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	ErrorCode         string `json:"errorCode,omitempty"`
	AttemptsRemaining *int   `json:"attemptsRemaining,omitempty"`
}

func Decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return err
	}
	return nil
}

func Write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	Write(w, status, ErrorBody{Success: false, Message: message, ErrorCode: code})
}
