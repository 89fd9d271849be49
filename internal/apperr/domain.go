package apperr

var (
	// Chat / delivery
	ErrNotParticipant    = Denied("access denied to chat")
	ErrNotMessageOwner   = Denied("you can only modify your own messages")
	ErrChatNotFound      = NotFound("chat not found")
	ErrMessageNotFound   = NotFound("message not found")
	ErrReplyNotFound     = InvalidArg("reply message not found")
	ErrMessageDeleted    = InvalidArg("message is deleted")
	ErrEditWindowExpired = WindowExpired("edit window expired")
	ErrEmptyContent      = InvalidArg("content is required")
	ErrInvalidEmoji      = InvalidArg("valid emoji is required")

	// Retention
	ErrRetentionNotFound = NotFound("not found in recently deleted")
	ErrRetentionExpired  = WindowExpired("retention period expired")

	// Calls
	ErrCalleeUnavailable = Unavailable("user not available")
	ErrMissingCallee     = InvalidArg("missing callee id")
	ErrUnknownCall       = NotFound("unknown call id")

	// Keys
	ErrBundleNotFound = NotFound("no key bundle found")
)
