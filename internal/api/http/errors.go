package apihttp

import (
	"errors"
	"net/http"

	cashbook "transport-ledger/internal/cashbook/domain"
	ledger "transport-ledger/internal/ledger/domain"
	logisticsapp "transport-ledger/internal/logistics/application"
	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/logistics/infrastructure/filestore"
	"transport-ledger/internal/records"
)

func respondServiceError(w http.ResponseWriter, err error) {
	var badRequest *badRequestError
	var validation *logistics.ValidationError
	switch {
	case errors.As(err, &badRequest), errors.As(err, &validation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, records.ErrNilRecord), errors.Is(err, records.ErrEmptyID),
		errors.Is(err, ledger.ErrNilEntry), errors.Is(err, cashbook.ErrNilEntry),
		errors.Is(err, ledger.ErrAmountSide),
		errors.Is(err, ledger.ErrInvalidScope), errors.Is(err, filestore.ErrInvalidKey),
		errors.Is(err, logistics.ErrRequiredField), errors.Is(err, logistics.ErrInvalidType),
		errors.Is(err, logistics.ErrNegativeAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, records.ErrNotFound), errors.Is(err, filestore.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, logistics.ErrSlipReferenced), errors.Is(err, logistics.ErrReferenced),
		errors.Is(err, logistics.ErrVehicleExists), errors.Is(err, ledger.ErrAppendOnly),
		errors.Is(err, records.ErrDuplicateID):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, filestore.ErrTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, logisticsapp.ErrNoContentStore):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
