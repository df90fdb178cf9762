package rpc

// rippled websocket commands and request constants.

const (
	// Ledger header lookup
	ledgerCommand = "ledger"

	// Raw ledger state enumeration
	ledgerDataCommand = "ledger_data"

	// ledger_index shortcut for the most recently closed ledger
	closedLedger = "closed"

	// ledger_data type filter restricting results to AccountRoot entries
	accountType = "account"
)

// Response envelope values.
const (
	responseType  = "response"
	statusSuccess = "success"
)

// DefaultEndpoint is the public Ripple websocket cluster.
const DefaultEndpoint = "wss://s1.ripple.com"

// DefaultPageLimit is the ledger_data page size requested by default.
const DefaultPageLimit = 20000
