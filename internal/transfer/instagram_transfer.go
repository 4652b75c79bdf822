package transfer

type InstagramContainer struct {
	ID string `json:"id"`
}

// InstagramContainerStatus is the response of GET {container}?fields=status_code.
// StatusCode is one of IN_PROGRESS, FINISHED, ERROR, EXPIRED or PUBLISHED.
type InstagramContainerStatus struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

type InstagramMediaInsights struct {
	ID            string `json:"id"`
	LikeCount     int64  `json:"like_count"`
	CommentsCount int64  `json:"comments_count"`
}

type InstagramErrorResponse struct {
	Error struct {
		Message        string `json:"message"`
		Type           string `json:"type"`
		Code           int    `json:"code"`
		ErrorSubcode   int    `json:"error_subcode"`
		IsTransient    bool   `json:"is_transient"`
		ErrorUserTitle string `json:"error_user_title"`
		ErrorUserMsg   string `json:"error_user_msg"`
		FbtraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}
