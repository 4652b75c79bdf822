package transfer

type LinkedInPostRequest struct {
	Author                    string               `json:"author"`
	Commentary                string               `json:"commentary"`
	Visibility                string               `json:"visibility"`
	Distribution              LinkedInDistribution `json:"distribution"`
	LifecycleState            string               `json:"lifecycleState"`
	IsReshareDisabledByAuthor bool                 `json:"isReshareDisabledByAuthor"`
}

type LinkedInDistribution struct {
	FeedDistribution               string `json:"feedDistribution"`
	TargetEntities                 []any  `json:"targetEntities"`
	ThirdPartyDistributionChannels []any  `json:"thirdPartyDistributionChannels"`
}

type LinkedInSocialActions struct {
	LikesSummary struct {
		TotalLikes int64 `json:"totalLikes"`
	} `json:"likesSummary"`
	CommentsSummary struct {
		AggregatedTotalComments int64 `json:"aggregatedTotalComments"`
		TotalFirstLevelComments int64 `json:"totalFirstLevelComments"`
	} `json:"commentsSummary"`
}

type LinkedInErrorResponse struct {
	Message          string `json:"message"`
	Status           int    `json:"status"`
	ServiceErrorCode int    `json:"serviceErrorCode"`
}
