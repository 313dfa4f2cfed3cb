package services

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"resqlink/models"
	"resqlink/utils"
)

const (
	unreadCachePrefix = "resqlink:unread:"
	unreadCacheTTL    = 30 * time.Second

	defaultNotificationPageSize = 20
	maxNotificationPageSize     = 100
)

// NotificationService is the recipient-facing inbox over the records the
// fan-out engine writes. The unread counter is cached in Redis because
// clients poll it aggressively; the cache degrades to a direct count
// when Redis is unavailable.
type NotificationService struct {
	notifications NotificationStore
	redis         *redis.Client
}

func NewNotificationService(notifications NotificationStore, redisClient *redis.Client) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		redis:         redisClient,
	}
}

// List returns a page of the user's notifications, newest first.
func (ns *NotificationService) List(ctx context.Context, userID string, req models.ListNotificationsRequest) ([]models.Notification, *models.MetaData, error) {
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, nil, utils.NewValidationError("Invalid user ID")
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := utils.ClampInt(req.PageSize, 1, maxNotificationPageSize)
	if req.PageSize <= 0 {
		pageSize = defaultNotificationPageSize
	}

	notifications, total, err := ns.notifications.ListByUser(ctx, userOID, page, pageSize, req.Type, req.Status)
	if err != nil {
		return nil, nil, err
	}
	return notifications, utils.CreatePaginationMeta(page, pageSize, total), nil
}

// MarkRead flips the given notifications to read and returns how many
// actually changed. Records belonging to other users are untouched.
func (ns *NotificationService) MarkRead(ctx context.Context, userID string, req models.MarkNotificationsReadRequest) (int64, error) {
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return 0, utils.NewValidationError("Invalid user ID")
	}
	if len(req.NotificationIDs) == 0 {
		return 0, utils.NewValidationError("No notification IDs given")
	}

	ids := make([]primitive.ObjectID, 0, len(req.NotificationIDs))
	for _, raw := range req.NotificationIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return 0, utils.NewValidationError("Invalid notification ID: " + raw)
		}
		ids = append(ids, id)
	}

	modified, err := ns.notifications.MarkRead(ctx, userOID, ids)
	if err != nil {
		return 0, err
	}
	if modified > 0 {
		ns.invalidateUnreadCache(ctx, userID)
	}
	return modified, nil
}

// UnreadCount returns the user's unread total, served from cache when
// fresh.
func (ns *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return 0, utils.NewValidationError("Invalid user ID")
	}

	if ns.redis != nil {
		cached, err := ns.redis.Get(ctx, unreadCachePrefix+userID).Result()
		if err == nil {
			if count, parseErr := strconv.ParseInt(cached, 10, 64); parseErr == nil {
				return count, nil
			}
		}
	}

	count, err := ns.notifications.CountUnread(ctx, userOID)
	if err != nil {
		return 0, err
	}

	if ns.redis != nil {
		if err := ns.redis.Set(ctx, unreadCachePrefix+userID, count, unreadCacheTTL).Err(); err != nil {
			logrus.WithError(err).Debug("Failed to cache unread count")
		}
	}
	return count, nil
}

func (ns *NotificationService) invalidateUnreadCache(ctx context.Context, userID string) {
	if ns.redis == nil {
		return
	}
	if err := ns.redis.Del(ctx, unreadCachePrefix+userID).Err(); err != nil {
		logrus.WithError(err).Debug("Failed to invalidate unread count cache")
	}
}
