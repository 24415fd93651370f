package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campushub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CircleQuery filters the circle directory.
type CircleQuery struct {
	Search   string
	MemberID uint
	Page     Page
}

// CircleRepository stores circles, memberships, join requests and circle content.
type CircleRepository interface {
	Create(ctx context.Context, circle *models.Circle) error
	GetByID(ctx context.Context, id uint) (*models.Circle, error)
	GetBySlug(ctx context.Context, slug string) (*models.Circle, error)
	List(ctx context.Context, q CircleQuery) ([]models.Circle, error)
	DeleteCascade(ctx context.Context, id uint) error

	GetMember(ctx context.Context, circleID, userID uint) (*models.CircleMember, error)
	AddMember(ctx context.Context, circleID, userID uint, role models.CircleRole) error
	RemoveMember(ctx context.Context, circleID, userID uint) error
	ListMembers(ctx context.Context, circleID uint, page Page) ([]models.CircleMember, error)
	SetMemberRole(ctx context.Context, circleID, userID uint, role models.CircleRole) error
	CountRole(ctx context.Context, circleID uint, role models.CircleRole) (int64, error)
	ListReviewers(ctx context.Context, circleID uint) ([]uint, error)

	RequestJoin(ctx context.Context, circleID, userID uint) (*models.CircleJoinRequest, error)
	GetJoinRequest(ctx context.Context, id uint) (*models.CircleJoinRequest, error)
	ListJoinRequests(ctx context.Context, circleID uint, status models.JoinRequestStatus) ([]models.CircleJoinRequest, error)
	ReviewJoinRequest(ctx context.Context, id, reviewerID uint, approve bool) (*models.CircleJoinRequest, *models.Notification, error)

	CreatePost(ctx context.Context, p *models.CirclePost) error
	ListPosts(ctx context.Context, circleID uint, page Page) ([]models.CirclePost, error)
	CreateMessage(ctx context.Context, m *models.CircleMessage) error
	ListMessages(ctx context.Context, circleID uint, page Page) ([]models.CircleMessage, error)
}

type circleRepository struct {
	db *gorm.DB
}

// NewCircleRepository returns a new CircleRepository.
func NewCircleRepository(db *gorm.DB) CircleRepository {
	return &circleRepository{db: db}
}

// Create stores the circle and makes its creator the first admin.
func (r *circleRepository) Create(ctx context.Context, circle *models.Circle) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(circle).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.NewConflictError(fmt.Sprintf("A circle with slug %q already exists", circle.Slug))
			}
			return models.NewInternalError(err)
		}
		member := models.CircleMember{CircleID: circle.ID, UserID: circle.CreatedBy, Role: models.CircleRoleAdmin}
		if err := tx.Create(&member).Error; err != nil {
			return models.NewInternalError(err)
		}
		circle.MemberCount = 1
		circle.MyRole = string(models.CircleRoleAdmin)
		return nil
	})
}

func (r *circleRepository) GetByID(ctx context.Context, id uint) (*models.Circle, error) {
	var c models.Circle
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFoundOr(err, "Circle", id)
	}
	if err := r.fillCounts(ctx, []*models.Circle{&c}); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *circleRepository) GetBySlug(ctx context.Context, slug string) (*models.Circle, error) {
	var c models.Circle
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&c).Error; err != nil {
		return nil, notFoundOr(err, "Circle", slug)
	}
	if err := r.fillCounts(ctx, []*models.Circle{&c}); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *circleRepository) List(ctx context.Context, q CircleQuery) ([]models.Circle, error) {
	tx := r.db.WithContext(ctx).Model(&models.Circle{})
	if q.Search != "" {
		like := containsPattern(q.Search)
		tx = tx.Where("LOWER(name) LIKE ?"+likeEscape+" OR LOWER(slug) LIKE ?"+likeEscape, like, like)
	}
	if q.MemberID != 0 {
		tx = tx.Where("id IN (?)", r.db.Model(&models.CircleMember{}).Select("circle_id").Where("user_id = ?", q.MemberID))
	}
	var rows []models.Circle
	if err := q.Page.apply(tx.Order("name ASC, id ASC")).Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	ptrs := make([]*models.Circle, len(rows))
	for i := range rows {
		ptrs[i] = &rows[i]
	}
	if err := r.fillCounts(ctx, ptrs); err != nil {
		return nil, err
	}
	return rows, nil
}

type memberCountRow struct {
	CircleID uint
	Count    int64
}

func (r *circleRepository) fillCounts(ctx context.Context, circles []*models.Circle) error {
	if len(circles) == 0 {
		return nil
	}
	ids := make([]uint, len(circles))
	for i, c := range circles {
		ids[i] = c.ID
	}
	var counts []memberCountRow
	if err := r.db.WithContext(ctx).Model(&models.CircleMember{}).
		Select("circle_id, COUNT(*) AS count").
		Where("circle_id IN ?", ids).
		Group("circle_id").
		Scan(&counts).Error; err != nil {
		return models.NewInternalError(err)
	}
	by := make(map[uint]int64, len(counts))
	for _, c := range counts {
		by[c.CircleID] = c.Count
	}
	for _, c := range circles {
		c.MemberCount = by[c.ID]
	}
	return nil
}

// DeleteCascade removes the circle with its members, posts, messages and join requests
// atomically. Postgres runs delete_circle_cascade; otherwise the same deletes run in one
// GORM transaction.
func (r *circleRepository) DeleteCascade(ctx context.Context, id uint) error {
	if isPostgres(r.db) {
		var removed int64
		err := r.db.WithContext(ctx).Raw("SELECT delete_circle_cascade(?)", id).Scan(&removed).Error
		switch {
		case err == nil && removed == 0:
			return models.NewNotFoundError("Circle", id)
		case err == nil:
			return nil
		case !isMissingFunction(err):
			return models.NewInternalError(err)
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&models.CircleMessage{}, &models.CirclePost{}, &models.CircleJoinRequest{}, &models.CircleMember{}} {
			if err := tx.Where("circle_id = ?", id).Delete(m).Error; err != nil {
				return models.NewInternalError(err)
			}
		}
		res := tx.Delete(&models.Circle{}, id)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Circle", id)
		}
		return nil
	})
}

// GetMember returns (nil, nil) when userID is not a member.
func (r *circleRepository) GetMember(ctx context.Context, circleID, userID uint) (*models.CircleMember, error) {
	var m models.CircleMember
	err := r.db.WithContext(ctx).Where("circle_id = ? AND user_id = ?", circleID, userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &m, nil
}

func (r *circleRepository) AddMember(ctx context.Context, circleID, userID uint, role models.CircleRole) error {
	m := models.CircleMember{CircleID: circleID, UserID: userID, Role: role}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *circleRepository) RemoveMember(ctx context.Context, circleID, userID uint) error {
	res := r.db.WithContext(ctx).Where("circle_id = ? AND user_id = ?", circleID, userID).Delete(&models.CircleMember{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Membership", userID)
	}
	return nil
}

func (r *circleRepository) ListMembers(ctx context.Context, circleID uint, page Page) ([]models.CircleMember, error) {
	var rows []models.CircleMember
	err := page.apply(r.db.WithContext(ctx).Preload("Profile").
		Where("circle_id = ?", circleID).
		Order("created_at ASC, user_id ASC")).
		Find(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *circleRepository) SetMemberRole(ctx context.Context, circleID, userID uint, role models.CircleRole) error {
	res := r.db.WithContext(ctx).Model(&models.CircleMember{}).
		Where("circle_id = ? AND user_id = ?", circleID, userID).
		Updates(map[string]any{"role": role, "updated_at": time.Now()})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Membership", userID)
	}
	return nil
}

func (r *circleRepository) CountRole(ctx context.Context, circleID uint, role models.CircleRole) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.CircleMember{}).
		Where("circle_id = ? AND role = ?", circleID, role).
		Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// ListReviewers returns the user ids allowed to review join requests.
func (r *circleRepository) ListReviewers(ctx context.Context, circleID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.CircleMember{}).
		Where("circle_id = ? AND role IN ?", circleID, []models.CircleRole{models.CircleRoleAdmin, models.CircleRoleModerator}).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// RequestJoin creates a pending request, or moves an earlier rejected one back to pending.
func (r *circleRepository) RequestJoin(ctx context.Context, circleID, userID uint) (*models.CircleJoinRequest, error) {
	req := models.CircleJoinRequest{CircleID: circleID, UserID: userID, Status: models.JoinRequestPending}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "circle_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":      models.JoinRequestPending,
			"reviewed_by": nil,
			"updated_at":  time.Now(),
		}),
	}).Create(&req).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	var got models.CircleJoinRequest
	if err := r.db.WithContext(ctx).Where("circle_id = ? AND user_id = ?", circleID, userID).First(&got).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &got, nil
}

func (r *circleRepository) GetJoinRequest(ctx context.Context, id uint) (*models.CircleJoinRequest, error) {
	var req models.CircleJoinRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, notFoundOr(err, "Join request", id)
	}
	return &req, nil
}

func (r *circleRepository) ListJoinRequests(ctx context.Context, circleID uint, status models.JoinRequestStatus) ([]models.CircleJoinRequest, error) {
	tx := r.db.WithContext(ctx).Preload("Profile").Where("circle_id = ?", circleID)
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	var rows []models.CircleJoinRequest
	if err := tx.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

// ReviewJoinRequest settles a pending request. Approval inserts the membership and
// notifies the requester in the same transaction; the stored notification is
// returned, nil on rejection.
func (r *circleRepository) ReviewJoinRequest(ctx context.Context, id, reviewerID uint, approve bool) (*models.CircleJoinRequest, *models.Notification, error) {
	var req models.CircleJoinRequest
	var note *models.Notification
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, id).Error; err != nil {
			return notFoundOr(err, "Join request", id)
		}
		if req.Status != models.JoinRequestPending {
			return models.NewConflictError("Join request was already reviewed")
		}

		status := models.JoinRequestRejected
		if approve {
			status = models.JoinRequestApproved
		}
		if err := tx.Model(&req).Updates(map[string]any{
			"status":      status,
			"reviewed_by": reviewerID,
		}).Error; err != nil {
			return models.NewInternalError(err)
		}
		req.Status = status
		req.ReviewedBy = &reviewerID

		if !approve {
			return nil
		}
		member := models.CircleMember{CircleID: req.CircleID, UserID: req.UserID, Role: models.CircleRoleMember}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
			return models.NewInternalError(err)
		}
		note = &models.Notification{
			RecipientID: req.UserID,
			ActorID:     &reviewerID,
			Type:        models.NotificationJoinApproved,
			EntityID:    req.CircleID,
			Message:     "Your request to join the circle was approved",
		}
		if err := tx.Create(note).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &req, note, nil
}

func (r *circleRepository) CreatePost(ctx context.Context, p *models.CirclePost) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).Preload("Author").First(p, p.ID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *circleRepository) ListPosts(ctx context.Context, circleID uint, page Page) ([]models.CirclePost, error) {
	var rows []models.CirclePost
	err := page.apply(r.db.WithContext(ctx).Preload("Author").
		Where("circle_id = ?", circleID).
		Order("created_at DESC, id DESC")).
		Find(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *circleRepository) CreateMessage(ctx context.Context, m *models.CircleMessage) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).Preload("Sender").First(m, m.ID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListMessages returns the newest page in chronological order.
func (r *circleRepository) ListMessages(ctx context.Context, circleID uint, page Page) ([]models.CircleMessage, error) {
	var rows []models.CircleMessage
	err := page.apply(r.db.WithContext(ctx).Preload("Sender").
		Where("circle_id = ?", circleID).
		Order("created_at DESC, id DESC")).
		Find(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
