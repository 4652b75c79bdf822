package transfer

type TwitterMediaUpload struct {
	MediaID          int64                  `json:"media_id"`
	MediaIDString    string                 `json:"media_id_string"`
	ExpiresAfterSecs int                    `json:"expires_after_secs"`
	ProcessingInfo   *TwitterProcessingInfo `json:"processing_info,omitempty"`
}

// TwitterProcessingInfo.State is one of pending, in_progress, failed or succeeded.
type TwitterProcessingInfo struct {
	State           string `json:"state"`
	CheckAfterSecs  int    `json:"check_after_secs"`
	ProgressPercent int    `json:"progress_percent"`
	Error           *struct {
		Code    int    `json:"code"`
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type TweetCreateRequest struct {
	Text  string      `json:"text"`
	Media *TweetMedia `json:"media,omitempty"`
}

type TweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type TweetCreateResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type TweetLookupResponse struct {
	Data struct {
		ID            string `json:"id"`
		PublicMetrics struct {
			RetweetCount    int64 `json:"retweet_count"`
			ReplyCount      int64 `json:"reply_count"`
			LikeCount       int64 `json:"like_count"`
			QuoteCount      int64 `json:"quote_count"`
			ImpressionCount int64 `json:"impression_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

type TwitterErrorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}
