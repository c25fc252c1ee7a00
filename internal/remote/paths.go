package remote

import "path"

// Remote path conventions. All paths are slash-delimited strings; collection
// paths hold ordered children, the rest are point values.

// MessagesPath is the append-only ordered message set for a conversation.
func MessagesPath(conversationID string) string {
	return path.Join("messages", conversationID)
}

// LastMessagePath holds the latest-message snapshot used for contact-list
// previews.
func LastMessagePath(conversationID string) string {
	return path.Join("lastMessages", conversationID)
}

// UnreadPath holds the reader's unread counter for a conversation.
func UnreadPath(readerID, conversationID string) string {
	return path.Join("unreadMessages", readerID, conversationID)
}

// TypingPath holds the typing flag owned by userID within a conversation.
func TypingPath(conversationID, userID string) string {
	return path.Join("typingStatus", conversationID, userID)
}

// OnlinePath holds a user's connection-presence flag, armed with a
// disconnect-write to false.
func OnlinePath(userID string) string {
	return path.Join("onlineUsers", userID)
}

// UsersPath is the user directory root, keyed by uid.
const UsersPath = "users"

// UserPath is one user's directory record.
func UserPath(userID string) string {
	return path.Join(UsersPath, userID)
}
