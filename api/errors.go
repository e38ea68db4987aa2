package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmcleod/keyguard/crypto"
	"github.com/jmcleod/keyguard/gate"
	"github.com/jmcleod/keyguard/keymanager"
	"github.com/jmcleod/keyguard/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// mapError translates domain errors into HTTP statuses. Credential failures
// keep their classified kind in the body so clients can branch on it (show a
// gentle message for a cancelled prompt, a technical one for a busy
// authenticator).
func mapError(w http.ResponseWriter, err error) {
	var ce *gate.CredentialError
	if errors.As(err, &ce) {
		status := http.StatusForbidden
		switch ce.Kind {
		case gate.KindNotSupported:
			status = http.StatusNotImplemented
		case gate.KindInvalidState:
			status = http.StatusConflict
		case gate.KindMissingCredential:
			status = http.StatusConflict
		}
		writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: string(ce.Kind)})
		return
	}

	switch {
	case errors.Is(err, keymanager.ErrEmptyProvider),
		errors.Is(err, keymanager.ErrEmptySecret):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, keymanager.ErrUnknownProvider):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, keymanager.ErrNoCredential):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, keymanager.ErrNoStoredSecret):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, crypto.ErrDecryptFailed):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
