package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/BagetTeam/ReeLearners/assembler"
	"github.com/BagetTeam/ReeLearners/model"
	"github.com/BagetTeam/ReeLearners/server/api"
	"github.com/BagetTeam/ReeLearners/utils"
	. "github.com/BagetTeam/ReeLearners/utils/log"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AppServer binds the JSON routes to their implementations. All business
// logic lives in server/api and assembler, handlers only parse, dispatch and
// translate errors into status codes.
type AppServer struct {
	DB        *gorm.DB
	Assembler *assembler.FeedAssembler
	Progress  *assembler.ProgressTracker

	// Optional redis-backed watched marks. Nil disables the per-viewer
	// "seen" annotation on feed reads.
	Status *utils.RedisStatusStore
}

// writeError maps a domain error onto its http status. Anything not
// classified is a plain 500.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case model.IsValidation(err):
		status = http.StatusBadRequest
	case model.IsNotFound(err):
		status = http.StatusNotFound
	case model.IsNotInFeed(err):
		status = http.StatusUnprocessableEntity
	case model.IsConfigurationError(err):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		Log.Errorf("unclassified handler error: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// RegisterRoutes attaches every route to the router.
func (s *AppServer) RegisterRoutes(router *gin.Engine) {
	router.POST("/users", s.upsertUser)
	router.GET("/users/:id/stats", s.getStatsByUser)
	router.GET("/users/:id/feeds", s.listFeedsByUser)

	router.POST("/feeds", s.createFeed)
	router.GET("/feeds/:id", s.getFeed)
	router.POST("/feeds/:id/status", s.updateFeedStatus)
	router.POST("/feeds/:id/progress", s.updateFeedProgress)
	router.POST("/feeds/:id/fetch", s.runFetchCycle)
	router.GET("/feeds/:id/reels", s.listReelsForFeed)
	router.DELETE("/feeds/:id", s.deleteFeed)

	router.PATCH("/reels/:id", s.patchReel)
	router.POST("/reels/:id/like", s.toggleLike)
	router.POST("/reels/:id/comments", s.addComment)
	router.GET("/reels/:id/engagement", s.getReelEngagement)

	router.POST("/views", s.recordView)
	router.GET("/leaderboard", s.leaderboard)
}

type upsertUserRequest struct {
	AuthId    string  `json:"authId" binding:"required"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	AvatarUrl *string `json:"avatarUrl"`
}

func (s *AppServer) upsertUser(c *gin.Context) {
	var req upsertUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := api.UpsertUserImpl(s.DB, req.AuthId, req.Email, req.Name, req.AvatarUrl)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userView(user))
}

func (s *AppServer) getStatsByUser(c *gin.Context) {
	stats, err := api.GetStatsByUserImpl(s.DB, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, statsView(stats))
}

type createFeedRequest struct {
	UserId      string   `json:"userId" binding:"required"`
	Prompt      string   `json:"prompt" binding:"required"`
	Topic       string   `json:"topic"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
}

func (s *AppServer) createFeed(c *gin.Context) {
	var req createFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	feed, err := api.CreateFeedImpl(s.DB, req.UserId, req.Prompt, req.Topic, req.Description, req.Tags)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, feedView(feed))
}

func (s *AppServer) getFeed(c *gin.Context) {
	feed, err := api.GetFeedImpl(s.DB, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, feedView(feed))
}

func (s *AppServer) listFeedsByUser(c *gin.Context) {
	var status *model.FeedStatus
	if raw := c.Query("status"); raw != "" {
		parsed := model.FeedStatus(raw)
		if !model.ValidFeedStatus(parsed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown feed status: " + raw})
			return
		}
		status = &parsed
	}
	feeds, err := api.ListFeedsByUserImpl(s.DB, c.Param("id"), status)
	if err != nil {
		writeError(c, err)
		return
	}
	views := []gin.H{}
	for idx := range feeds {
		views = append(views, feedView(&feeds[idx]))
	}
	c.JSON(http.StatusOK, gin.H{"feeds": views})
}

type updateFeedStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *AppServer) updateFeedStatus(c *gin.Context) {
	var req updateFeedStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	feed, err := api.UpdateFeedStatusImpl(s.DB, c.Param("id"), model.FeedStatus(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, feedView(feed))
}

type updateFeedProgressRequest struct {
	LastSeenIndex  *int    `json:"lastSeenIndex"`
	LastSeenReelId *string `json:"lastSeenReelId"`
}

func (s *AppServer) updateFeedProgress(c *gin.Context) {
	var req updateFeedProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.Progress.RecordProgress(c.Param("id"), req.LastSeenIndex, req.LastSeenReelId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"feed":           feedView(res.Feed),
		"remainingAhead": res.RemainingAhead,
		"shouldHydrate":  res.ShouldHydrate,
	})
}

type runFetchCycleRequest struct {
	Prompt string `json:"prompt"`
	Limit  int    `json:"limit"`
}

// runFetchCycle triggers one hydration cycle for a feed. The per-feed redis
// flag collapses concurrent triggers into a single running cycle, the losers
// get a 200 with started=false instead of piling on the providers.
func (s *AppServer) runFetchCycle(c *gin.Context) {
	var req runFetchCycleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	feedId := c.Param("id")
	feed, err := api.GetFeedImpl(s.DB, feedId)
	if err != nil {
		writeError(c, err)
		return
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = feed.Prompt
	}

	acquired, err := s.Progress.TryBeginHydration(feedId)
	if err != nil {
		Log.Errorf("fail to check hydration flag for feed %s: %v", feedId, err)
	}
	if !acquired && err == nil {
		c.JSON(http.StatusOK, gin.H{"started": false, "inserted": 0})
		return
	}
	defer s.Progress.EndHydration(feedId)

	res, err := s.Assembler.RunFetchCycle(feedId, prompt, req.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": true, "inserted": res.Inserted})
}

func (s *AppServer) listReelsForFeed(c *gin.Context) {
	var status *model.PlacementStatus
	if raw := c.Query("status"); raw != "" {
		parsed := model.PlacementStatus(raw)
		status = &parsed
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: " + raw})
			return
		}
		limit = parsed
	}
	placed, err := api.ListReelsForFeedImpl(s.DB, c.Param("id"), status, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	views := []gin.H{}
	for idx := range placed {
		views = append(views, placedReelView(&placed[idx]))
	}
	s.annotateWatched(c.Query("userId"), placed, views)
	c.JSON(http.StatusOK, gin.H{"reels": views})
}

// annotateWatched adds the viewer's per-reel watched mark to each view. The
// marks are best effort: no viewer, no redis, or a redis error just leaves
// the views unannotated.
func (s *AppServer) annotateWatched(userId string, placed []api.PlacedReel, views []gin.H) {
	if userId == "" || s.Status == nil || len(placed) == 0 {
		return
	}
	reelIds := make([]string, 0, len(placed))
	for _, item := range placed {
		reelIds = append(reelIds, item.Reel.Id)
	}
	watched, err := s.Status.GetItemsWatchedStatus(reelIds, userId)
	if err != nil {
		Log.Errorf("fail to read watched status for user %s: %v", userId, err)
		return
	}
	for idx := range views {
		views[idx]["watched"] = watched[idx]
	}
}

func (s *AppServer) deleteFeed(c *gin.Context) {
	if err := api.DeleteFeedImpl(s.DB, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type patchReelRequest struct {
	VideoUrl        *string             `json:"videoUrl"`
	ThumbnailUrl    *string             `json:"thumbnailUrl"`
	Title           *string             `json:"title"`
	Description     *string             `json:"description"`
	DurationSeconds *int                `json:"durationSeconds"`
	Metadata        *model.ReelMetadata `json:"metadata"`
}

func (s *AppServer) patchReel(c *gin.Context) {
	var req patchReelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reel, err := api.PatchReelImpl(s.DB, c.Param("id"), api.ReelPatch{
		VideoUrl:        req.VideoUrl,
		ThumbnailUrl:    req.ThumbnailUrl,
		Title:           req.Title,
		Description:     req.Description,
		DurationSeconds: req.DurationSeconds,
		Metadata:        req.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reelView(reel))
}

type toggleLikeRequest struct {
	UserId string `json:"userId" binding:"required"`
}

func (s *AppServer) toggleLike(c *gin.Context) {
	var req toggleLikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	liked, err := api.ToggleLikeImpl(s.DB, c.Param("id"), req.UserId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked})
}

type addCommentRequest struct {
	UserId string `json:"userId" binding:"required"`
	Body   string `json:"body"`
}

func (s *AppServer) addComment(c *gin.Context) {
	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	commentId, err := api.AddCommentImpl(s.DB, c.Param("id"), req.UserId, req.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commentId": commentId})
}

func (s *AppServer) getReelEngagement(c *gin.Context) {
	var userId *string
	if raw := c.Query("userId"); raw != "" {
		userId = &raw
	}
	limit := api.DefaultCommentLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: " + raw})
			return
		}
		limit = parsed
	}
	engagement, err := api.GetReelEngagementImpl(s.DB, c.Param("id"), userId, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	comments := []gin.H{}
	for _, comment := range engagement.Comments {
		comments = append(comments, gin.H{
			"id":            comment.Id,
			"body":          comment.Body,
			"createdAt":     comment.CreatedAt,
			"userId":        comment.UserID,
			"userName":      comment.UserName,
			"userAvatarUrl": comment.UserAvatarUrl,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"likeCount":    engagement.LikeCount,
		"commentCount": engagement.CommentCount,
		"likedByUser":  engagement.LikedByUser,
		"comments":     comments,
	})
}

type recordViewRequest struct {
	UserId string `json:"userId" binding:"required"`
	FeedId string `json:"feedId" binding:"required"`
	ReelId string `json:"reelId" binding:"required"`
}

func (s *AppServer) recordView(c *gin.Context) {
	var req recordViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := api.RecordViewImpl(s.DB, req.UserId, req.FeedId, req.ReelId, time.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	if res.Counted && s.Status != nil {
		if err := s.Status.SetItemsWatchedStatus([]string{req.ReelId}, req.UserId, true); err != nil {
			Log.Errorf("fail to mark reel %s watched for user %s: %v", req.ReelId, req.UserId, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"counted": res.Counted,
		"stats":   statsView(&res.Stats),
	})
}

func (s *AppServer) leaderboard(c *gin.Context) {
	mode := c.DefaultQuery("mode", api.LeaderboardModeDaily)
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: " + raw})
			return
		}
		limit = parsed
	}
	entries, err := api.LeaderboardImpl(s.DB, mode, limit, time.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	views := []gin.H{}
	for _, entry := range entries {
		views = append(views, gin.H{
			"userId":      entry.UserID,
			"name":        entry.Name,
			"avatarUrl":   entry.AvatarUrl,
			"dailyStreak": entry.DailyStreak,
			"bestStreak":  entry.BestStreak,
			"totalCount":  entry.TotalCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": views})
}

func userView(user *model.User) gin.H {
	return gin.H{
		"id":        user.Id,
		"authId":    user.AuthId,
		"email":     user.Email,
		"name":      user.Name,
		"avatarUrl": user.AvatarUrl,
		"createdAt": user.CreatedAt,
	}
}

func feedView(feed *model.Feed) gin.H {
	return gin.H{
		"id":             feed.Id,
		"userId":         feed.UserID,
		"prompt":         feed.Prompt,
		"topic":          feed.Topic,
		"description":    feed.Description,
		"tags":           feed.Tags(),
		"status":         feed.Status,
		"lastSeenIndex":  feed.LastSeenIndex,
		"lastSeenReelId": feed.LastSeenReelID,
		"createdAt":      feed.CreatedAt,
		"updatedAt":      feed.UpdatedAt,
	}
}

func reelView(reel *model.Reel) gin.H {
	return gin.H{
		"id":              reel.Id,
		"title":           reel.Title,
		"description":     reel.Description,
		"videoUrl":        reel.VideoUrl,
		"thumbnailUrl":    reel.ThumbnailUrl,
		"durationSeconds": reel.DurationSeconds,
		"sourceType":      reel.SourceType,
		"sourceReference": reel.SourceReference,
		"metadata":        reel.ParsedMetadata(),
		"createdAt":       reel.CreatedAt,
	}
}

func placedReelView(placed *api.PlacedReel) gin.H {
	view := reelView(&placed.Reel)
	view["position"] = placed.Position
	view["placementStatus"] = placed.Status
	return view
}

func statsView(stats *model.UserStats) gin.H {
	return gin.H{
		"userId":        stats.UserID,
		"currentStreak": stats.CurrentStreak,
		"dailyStreak":   stats.DailyStreak,
		"bestStreak":    stats.BestStreak,
		"totalCount":    stats.TotalCount,
		"lastFeedId":    stats.LastFeedID,
		"lastDayKey":    stats.LastDayKey,
	}
}
