package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/google/uuid"
	"github.com/tagfeed/internal/db"
	_ "golang.org/x/image/webp"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxImageBytes = 20 << 20

var (
	ErrImageNotFound           = errors.New("image not found")
	ErrImageInvalid            = errors.New("image could not be decoded")
	ErrImageTooLarge           = errors.New("image exceeds size limit")
	ErrModerationStatusInvalid = errors.New("moderation status is invalid")
)

// ImageService handles image ingestion and moderation.
type ImageService struct {
	db        *gorm.DB
	uploadDir string
	uploadURL string
	now       func() time.Time
}

// ImageUpload 描述一次图片上传。
type ImageUpload struct {
	PostID   uint
	UserID   uint
	Filename string
	NSFW     bool
	Meta     map[string]interface{}
	Body     io.Reader
}

// NewImageService creates an ImageService that stores files under uploadDir
// and exposes them under uploadURL.
func NewImageService(gdb *gorm.DB, uploadDir, uploadURL string) *ImageService {
	return &ImageService{
		db:        gdb,
		uploadDir: uploadDir,
		uploadURL: strings.TrimRight(uploadURL, "/"),
		now:       time.Now,
	}
}

// Ingest 解码图片、计算尺寸与感知哈希、保存文件并追加到帖子末尾。
func (s *ImageService) Ingest(ctx context.Context, upload ImageUpload) (*db.Image, error) {
	var post db.Post
	if err := s.db.WithContext(ctx).First(&post, upload.PostID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if post.UserID != upload.UserID {
		return nil, ErrPostForbidden
	}

	data, err := io.ReadAll(io.LimitReader(upload.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, ErrImageTooLarge
	}

	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrImageInvalid
	}
	bounds := decoded.Bounds()

	meta := map[string]interface{}{}
	for key, value := range upload.Meta {
		meta[key] = value
	}
	meta["format"] = format
	meta["size"] = len(data)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode image meta: %w", err)
	}

	hash, err := DifferenceHash(decoded)
	if err != nil {
		return nil, ErrImageInvalid
	}

	fileName, err := s.store(data, upload.Filename, format)
	if err != nil {
		return nil, err
	}

	record := db.Image{
		PostID:           post.ID,
		UserID:           upload.UserID,
		URL:              path.Join(s.uploadURL, fileName),
		NSFW:             upload.NSFW,
		Width:            bounds.Dx(),
		Height:           bounds.Dy(),
		Hash:             hash,
		Meta:             datatypes.JSON(metaJSON),
		ModerationStatus: db.ModerationApproved,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxIndex int
		if err := tx.Model(&db.Image{}).
			Where("post_id = ?", post.ID).
			Select("COALESCE(MAX(display_index), -1)").
			Scan(&maxIndex).Error; err != nil {
			return err
		}
		record.DisplayIndex = maxIndex + 1
		return tx.Create(&record).Error
	})
	if err != nil {
		_ = os.Remove(filepath.Join(s.uploadDir, fileName))
		return nil, err
	}

	return &record, nil
}

// ListForPost 返回帖子下所有图片，按展示顺序排列。
func (s *ImageService) ListForPost(ctx context.Context, postID uint) ([]db.Image, error) {
	var images []db.Image
	if err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("display_index asc").
		Order("id asc").
		Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

// SetModeration 更新图片审核状态。
func (s *ImageService) SetModeration(ctx context.Context, id uint, status string) (*db.Image, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case db.ModerationApproved, db.ModerationPending, db.ModerationBlocked:
	default:
		return nil, ErrModerationStatusInvalid
	}

	var item db.Image
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, err
	}

	item.ModerationStatus = status
	if err := s.db.WithContext(ctx).Model(&item).Update("moderation_status", status).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *ImageService) store(data []byte, original, format string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = "." + format
	}
	fileName := fmt.Sprintf("%s-%s%s", s.now().Format("20060102"), uuid.New().String(), ext)
	if err := os.WriteFile(filepath.Join(s.uploadDir, fileName), data, 0o644); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return fileName, nil
}

// DifferenceHash 返回 64 位 dHash 的十六进制表示，用于识别重复图片。
func DifferenceHash(src image.Image) (string, error) {
	hash, err := goimagehash.DifferenceHash(src)
	if err != nil {
		return "", fmt.Errorf("difference hash: %w", err)
	}
	return fmt.Sprintf("%016x", hash.GetHash()), nil
}
