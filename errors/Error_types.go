package errors

var (
	ErrUnknown              = New(ERR_UNKNOWN, "unknown error")
	ErrInvalidFormat        = New(ERR_INVALID_FORMAT, "invalid format")
	ErrBlockPow             = New(ERR_INVALID_BLOCK_POW, "block does not satisfy proof-of-work")
	ErrBlockCoinbase        = New(ERR_INVALID_BLOCK_COINBASE, "invalid coinbase")
	ErrBlockTimestamp       = New(ERR_INVALID_BLOCK_TIMESTAMP, "invalid block timestamp")
	ErrTxOutpoint           = New(ERR_INVALID_TX_OUTPOINT, "invalid outpoint")
	ErrTxConservation       = New(ERR_INVALID_TX_CONSERVATION, "outputs exceed inputs")
	ErrTxSignature          = New(ERR_INVALID_TX_SIGNATURE, "invalid signature")
	ErrUnknownObject        = New(ERR_UNKNOWN_OBJECT, "unknown object")
	ErrUnfindableObject     = New(ERR_UNFINDABLE_OBJECT, "unfindable object")
	ErrInternal             = New(ERR_INTERNAL_ERROR, "internal error")
	ErrNotFound             = New(ERR_NOT_FOUND, "not found")
	ErrStorageError         = New(ERR_STORAGE_ERROR, "storage error")
	ErrConfiguration        = New(ERR_CONFIGURATION, "configuration error")
	ErrProcessing           = New(ERR_PROCESSING, "error processing")
	ErrContextCanceled      = New(ERR_CONTEXT_CANCELED, "context canceled")
	ErrInvalidArgument      = New(ERR_INVALID_ARGUMENT, "invalid argument")
)

// errors initialization functions

func NewUnknownError(message string, params ...interface{}) *Error {
	return New(ERR_UNKNOWN, message, params...)
}
func NewInvalidFormatError(message string, params ...interface{}) *Error {
	return New(ERR_INVALID_FORMAT, message, params...)
}
func NewBlockPowError(message string, params ...interface{}) *Error {
	return New(ERR_INVALID_BLOCK_POW, message, params...)
}
func NewBlockCoinbaseError(message string, params ...interface{}) *Error {
	return New(ERR_INVALID_BLOCK_COINBASE, message, params...)
}
func NewBlockTimestampError(message string, params ...interface{}) *Error {
	return New(ERR_INVALID_BLOCK_TIMESTAMP, message, params...)
}
func NewTxOutpointError(message string, params ...interface{}) *Error {
	return New(ERR_INVALID_TX_OUTPOINT, message, params...)
}
func NewTxConservationError(message string, params ...interface{}) *Error {
	return New(ERR_INVALID_TX_CONSERVATION, message, params...)
}
func NewTxSignatureError(message string, params ...interface{}) *Error {
	return New(ERR_INVALID_TX_SIGNATURE, message, params...)
}
func NewUnknownObjectError(message string, params ...interface{}) *Error {
	return New(ERR_UNKNOWN_OBJECT, message, params...)
}
func NewUnfindableObjectError(message string, params ...interface{}) *Error {
	return New(ERR_UNFINDABLE_OBJECT, message, params...)
}
func NewInternalError(message string, params ...interface{}) *Error {
	return New(ERR_INTERNAL_ERROR, message, params...)
}
func NewNotFoundError(message string, params ...interface{}) *Error {
	return New(ERR_NOT_FOUND, message, params...)
}
func NewStorageError(message string, params ...interface{}) *Error {
	return New(ERR_STORAGE_ERROR, message, params...)
}
func NewConfigurationError(message string, params ...interface{}) *Error {
	return New(ERR_CONFIGURATION, message, params...)
}
func NewProcessingError(message string, params ...interface{}) *Error {
	return New(ERR_PROCESSING, message, params...)
}
func NewContextCanceledError(message string, params ...interface{}) *Error {
	return New(ERR_CONTEXT_CANCELED, message, params...)
}
func NewInvalidArgumentError(message string, params ...interface{}) *Error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}
