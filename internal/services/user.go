package services

import (
	"context"
	"errors"
	"strings"

	"studyforum/internal/apperr"
	"studyforum/internal/models"
	"studyforum/internal/utils"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// validate 服务层兜底校验，规则与请求体 binding 标签一致
var validate = validator.New()

type RegisterInput struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	FirstName string `json:"firstName" binding:"max=100"`
	LastName  string `json:"lastName" binding:"max=100"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserProfile 用户主页数据
type UserProfile struct {
	User         *models.User `json:"user"`
	Level        string       `json:"level"`
	LevelIcon    string       `json:"levelIcon"`
	DaysJoined   int          `json:"daysJoined"`
	PostCount    int64        `json:"postCount"`
	CommentCount int64        `json:"commentCount"`
}

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// ErrInvalidCredentials is returned for an unknown email or wrong password.
var ErrInvalidCredentials = &apperr.Error{Kind: apperr.KindUnauthorized, Message: "Invalid email or password"}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, apperr.Invalid("email", "must be a valid email address")
	}
	if err := validate.Var(in.Password, "min=8,max=72"); err != nil {
		return nil, apperr.Invalid("password", "must be between 8 and 72 characters")
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, storageErr("check email", err)
	}
	if count > 0 {
		return nil, apperr.Conflict("Email is already registered")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Email:     email,
		Password:  hash,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("Email is already registered")
		}
		return nil, storageErr("create user", err)
	}
	return &user, nil
}

func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, storageErr("load user", err)
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	if err := requireID("id", id); err != nil {
		return nil, apperr.NotFound("User")
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, notFoundOr("User", "load user", err)
	}
	return &user, nil
}

func (s *UserService) Profile(ctx context.Context, id string) (*UserProfile, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	profile := &UserProfile{User: user, DaysJoined: utils.GetDaysSinceJoined(user.CreatedAt)}
	profile.Level, profile.LevelIcon = utils.GetUserLevel(user.Reputation)
	if err := db.Model(&models.Post{}).Where("author_id = ?", id).Count(&profile.PostCount).Error; err != nil {
		return nil, storageErr("count posts", err)
	}
	if err := db.Model(&models.Comment{}).Where("author_id = ?", id).Count(&profile.CommentCount).Error; err != nil {
		return nil, storageErr("count comments", err)
	}
	return profile, nil
}
