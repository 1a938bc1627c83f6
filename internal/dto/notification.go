package dto

// NotificationListQuery binds GET /notifications query parameters.
type NotificationListQuery struct {
	UnreadOnly bool `form:"unread"`
	Page       int  `form:"page"`
	PageSize   int  `form:"page_size"`
}

// UnreadCountResponse is returned from GET /notifications/unread-count.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}
