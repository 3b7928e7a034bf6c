package errors

import "strconv"

// ERR is the machine-readable kind carried by every *Error. The names in ERR_name
// are the exact strings surfaced to peers in error messages.
type ERR int32

const (
	ERR_UNKNOWN ERR = 0

	// peer-facing validation kinds
	ERR_INVALID_FORMAT          ERR = 1
	ERR_INVALID_BLOCK_POW       ERR = 2
	ERR_INVALID_BLOCK_COINBASE  ERR = 3
	ERR_INVALID_BLOCK_TIMESTAMP ERR = 4
	ERR_INVALID_TX_OUTPOINT     ERR = 5
	ERR_INVALID_TX_CONSERVATION ERR = 6
	ERR_INVALID_TX_SIGNATURE    ERR = 7
	ERR_UNKNOWN_OBJECT          ERR = 8
	ERR_UNFINDABLE_OBJECT       ERR = 9
	ERR_INTERNAL_ERROR          ERR = 10

	// local failures, never sent to a peer as-is
	ERR_NOT_FOUND        ERR = 20
	ERR_STORAGE_ERROR    ERR = 21
	ERR_CONFIGURATION    ERR = 22
	ERR_PROCESSING       ERR = 23
	ERR_CONTEXT_CANCELED ERR = 24
	ERR_INVALID_ARGUMENT ERR = 25
)

var ERR_name = map[int32]string{
	0:  "UNKNOWN",
	1:  "INVALID_FORMAT",
	2:  "INVALID_BLOCK_POW",
	3:  "INVALID_BLOCK_COINBASE",
	4:  "INVALID_BLOCK_TIMESTAMP",
	5:  "INVALID_TX_OUTPOINT",
	6:  "INVALID_TX_CONSERVATION",
	7:  "INVALID_TX_SIGNATURE",
	8:  "UNKNOWN_OBJECT",
	9:  "UNFINDABLE_OBJECT",
	10: "INTERNAL_ERROR",
	20: "NOT_FOUND",
	21: "STORAGE_ERROR",
	22: "CONFIGURATION",
	23: "PROCESSING",
	24: "CONTEXT_CANCELED",
	25: "INVALID_ARGUMENT",
}

var ERR_value = func() map[string]int32 {
	m := make(map[string]int32, len(ERR_name))
	for k, v := range ERR_name {
		m[v] = k
	}

	return m
}()

func (x ERR) String() string {
	if name, ok := ERR_name[int32(x)]; ok {
		return name
	}

	return strconv.Itoa(int(x))
}

// Enum returns a pointer to a copy of x, mirroring generated enum helpers.
func (x ERR) Enum() *ERR {
	p := new(ERR)
	*p = x

	return p
}

// IsValidation reports whether the code belongs to the peer-facing validation kinds.
func (x ERR) IsValidation() bool {
	return x >= ERR_INVALID_FORMAT && x <= ERR_INTERNAL_ERROR
}
