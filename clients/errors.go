package clients

import "errors"

var (
	// ErrNoSigner is returned by write calls on a client built without a key.
	ErrNoSigner = errors.New("no signer configured on client")

	// ErrNoContractData is returned when a view call comes back empty, which
	// is what a node answers for an address without code.
	ErrNoContractData = errors.New("contract call returned no data")
)
