package http

import (
	"fmt"
	"net/http"
	"testing"

	"ahorro/internal/backup"
	"ahorro/internal/core"
	"ahorro/internal/services"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("wrap: %w", core.ErrInvalidAmount), http.StatusUnprocessableEntity, CodeInvalidInput},
		{services.ErrSlotOutOfRange, http.StatusUnprocessableEntity, CodeInvalidInput},
		{backup.ErrInvalidBackup, http.StatusUnprocessableEntity, CodeInvalidInput},
		{&services.ConfirmationError{Prompt: "¿Seguro?"}, http.StatusPreconditionRequired, CodeConfirmationRequired},
		{services.ErrNotStarted, http.StatusConflict, CodeNotStarted},
		{fmt.Errorf("%q: %w", "x", services.ErrChallengeNotFound), http.StatusNotFound, CodeNotFound},
		{backup.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented},
		{&requestError{msg: "malformed JSON body", err: fmt.Errorf("eof")}, http.StatusBadRequest, CodeBadRequest},
		{fmt.Errorf("disk full"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		status, code, _ := classify(tc.err)
		if status != tc.status || code != tc.code {
			t.Errorf("%v: got %d/%s want %d/%s", tc.err, status, code, tc.status, tc.code)
		}
	}

	_, _, msg := classify(core.ErrInvalidAmount)
	if msg != "Cantidad inválida." {
		t.Errorf("unexpected message %q", msg)
	}
	_, _, msg = classify(&services.ConfirmationError{Prompt: "¿Seguro?"})
	if msg != "¿Seguro?" {
		t.Errorf("confirmation should surface the prompt, got %q", msg)
	}
}
