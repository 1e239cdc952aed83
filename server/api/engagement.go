package api

import (
	"strings"
	"time"

	"github.com/BagetTeam/ReeLearners/model"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// DefaultCommentLimit is how many of the latest comments an engagement read
// returns when the caller does not ask for a specific page size.
const DefaultCommentLimit = 6

// ToggleLikeImpl flips the user's like on a reel and returns the new state.
func ToggleLikeImpl(db *gorm.DB, reelId string, userId string) (bool, error) {
	if _, err := GetReelImpl(db, reelId); err != nil {
		return false, err
	}

	var like model.ReelLike
	result := db.Where("reel_id = ? AND user_id = ?", reelId, userId).First(&like)
	if result.RowsAffected > 0 {
		if err := db.Delete(&like).Error; err != nil {
			return false, errors.Wrap(err, "fail to remove like")
		}
		return false, nil
	}

	like = model.ReelLike{ReelID: reelId, UserID: userId, CreatedAt: time.Now()}
	if err := db.Create(&like).Error; err != nil {
		return false, errors.Wrap(err, "fail to create like")
	}
	return true, nil
}

// AddCommentImpl appends a comment to a reel. The body is trimmed and must
// be non-empty and at most model.MaxCommentLength characters.
func AddCommentImpl(db *gorm.DB, reelId string, userId string, body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", &model.ValidationError{Reason: "comment cannot be empty"}
	}
	if len([]rune(body)) > model.MaxCommentLength {
		return "", &model.ValidationError{Reason: "comment too long"}
	}

	if _, err := GetReelImpl(db, reelId); err != nil {
		return "", err
	}
	if _, err := GetUserImpl(db, userId); err != nil {
		return "", err
	}

	comment := model.ReelComment{
		Id:     uuid.New().String(),
		ReelID: reelId,
		UserID: userId,
		Body:   body,
	}
	if err := db.Create(&comment).Error; err != nil {
		return "", errors.Wrap(err, "fail to create comment")
	}
	return comment.Id, nil
}

// CommentView is one comment enriched with its author's display fields.
type CommentView struct {
	Id            string
	Body          string
	CreatedAt     time.Time
	UserID        string
	UserName      string
	UserAvatarUrl *string
}

// ReelEngagement is the aggregate engagement read for one reel.
type ReelEngagement struct {
	LikeCount    int64
	CommentCount int64
	LikedByUser  bool
	Comments     []CommentView
}

// GetReelEngagementImpl aggregates likes and comments for a reel, with the
// latest comments enriched by author name and avatar.
func GetReelEngagementImpl(db *gorm.DB, reelId string, userId *string, limit int) (*ReelEngagement, error) {
	if _, err := GetReelImpl(db, reelId); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultCommentLimit
	}

	engagement := ReelEngagement{Comments: []CommentView{}}

	if err := db.Model(&model.ReelLike{}).Where("reel_id = ?", reelId).Count(&engagement.LikeCount).Error; err != nil {
		return nil, errors.Wrap(err, "fail to count likes")
	}
	if err := db.Model(&model.ReelComment{}).Where("reel_id = ?", reelId).Count(&engagement.CommentCount).Error; err != nil {
		return nil, errors.Wrap(err, "fail to count comments")
	}

	if userId != nil {
		var likeCount int64
		if err := db.Model(&model.ReelLike{}).Where("reel_id = ? AND user_id = ?", reelId, *userId).Count(&likeCount).Error; err != nil {
			return nil, errors.Wrap(err, "fail to check user like")
		}
		engagement.LikedByUser = likeCount > 0
	}

	var comments []model.ReelComment
	if err := db.Where("reel_id = ?", reelId).Order("created_at desc").Limit(limit).Find(&comments).Error; err != nil {
		return nil, errors.Wrap(err, "fail to list comments")
	}

	for _, comment := range comments {
		view := CommentView{
			Id:        comment.Id,
			Body:      comment.Body,
			CreatedAt: comment.CreatedAt,
			UserID:    comment.UserID,
			UserName:  "Anonymous",
		}
		var author model.User
		if db.Where("id = ?", comment.UserID).First(&author).RowsAffected > 0 {
			view.UserName = author.Name
			view.UserAvatarUrl = author.AvatarUrl
		}
		engagement.Comments = append(engagement.Comments, view)
	}

	return &engagement, nil
}
