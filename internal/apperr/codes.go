package apperr

type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeWindowExpired    Code = "WINDOW_EXPIRED"
	CodeUnavailable      Code = "UNAVAILABLE"
	CodeConflict         Code = "CONFLICT"
	CodeInternal         Code = "INTERNAL"
)
