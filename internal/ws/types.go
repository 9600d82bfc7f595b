package ws

const (
	// client - server
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
	MsgPublish     = "publish"

	// server - client
	MsgReady              = "ready"
	MsgSubscribeSuccess   = "subscribe_success"
	MsgSubscribeError     = "subscribe_error"
	MsgUnsubscribeSuccess = "unsubscribe_success"
	MsgPublishSuccess     = "publish_success"
	MsgPublishError       = "publish_error"
	MsgData               = "data"
	MsgError              = "error"
)
