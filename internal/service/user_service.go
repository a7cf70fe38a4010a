package service

import (
	"context"
	"errors"
	"strings"

	"github.com/tagfeed/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrSelfBlock          = errors.New("cannot block yourself")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// UserService wraps user lookups and block relations.
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a UserService instance.
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

// FindByUsername 按用户名查找用户，不存在时返回 ErrUserNotFound。
func (s *UserService) FindByUsername(ctx context.Context, username string) (*db.User, error) {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return nil, ErrUserNotFound
	}

	var user db.User
	if err := s.db.WithContext(ctx).Where("username = ?", trimmed).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Authenticate 校验用户名与密码。
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*db.User, error) {
	user, err := s.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Get fetches a user by id.
func (s *UserService) Get(ctx context.Context, id uint) (*db.User, error) {
	var user db.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Block 记录屏蔽关系，重复屏蔽不报错。
func (s *UserService) Block(ctx context.Context, blockerID, blockedID uint) error {
	if blockerID == blockedID {
		return ErrSelfBlock
	}
	if _, err := s.Get(ctx, blockedID); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "blocker_id"}, {Name: "blocked_id"}},
		DoNothing: true,
	}).Create(&db.UserBlock{BlockerID: blockerID, BlockedID: blockedID}).Error
}

// Unblock 解除屏蔽关系。
func (s *UserService) Unblock(ctx context.Context, blockerID, blockedID uint) error {
	return s.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&db.UserBlock{}).Error
}

// BlockedIDs 返回 viewer 屏蔽的用户 id。
func (s *UserService) BlockedIDs(ctx context.Context, viewerID uint) ([]uint, error) {
	ids := []uint{}
	if viewerID == 0 {
		return ids, nil
	}
	if err := s.db.WithContext(ctx).Model(&db.UserBlock{}).
		Where("blocker_id = ?", viewerID).
		Order("blocked_id asc").
		Pluck("blocked_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
