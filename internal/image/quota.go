package image

// WithinQuota decides whether another upload is permitted given the user's
// current stored-image count and plan cap. A nil cap — no plan, or a plan
// without a limit — always permits. Otherwise another upload is allowed only
// while the count is strictly below the cap.
func WithinQuota(currentCount int64, maxImages *int32) bool {
	if maxImages == nil {
		return true
	}
	return currentCount < int64(*maxImages)
}
