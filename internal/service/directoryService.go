package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ds124wfegd/ewm/internal/database"
	"github.com/ds124wfegd/ewm/internal/entity"
	"github.com/sirupsen/logrus"
)

// NewUserRequest represents the data needed to register a user
type NewUserRequest struct {
	Name  string `json:"name" validate:"required,notblank,min=2,max=250"`
	Email string `json:"email" validate:"required,email,min=6,max=254"`
}

type CategoryRequest struct {
	Name string `json:"name" validate:"required,notblank,min=1,max=50"`
}

type userService struct {
	users database.UserRepository
}

func NewUserService(repos *database.Repositories) UserService {
	return &userService{users: repos.Users}
}

func (s *userService) RegisterUser(ctx context.Context, req *NewUserRequest) (*entity.User, error) {
	if req == nil {
		return nil, entity.Validationf("user body is required")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user := &entity.User{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logrus.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

func (s *userService) GetUsers(ctx context.Context, ids []int64, from, size int) ([]*entity.User, error) {
	if from < 0 || size < 0 {
		return nil, entity.Validationf("from and size must not be negative")
	}
	if size == 0 {
		size = defaultPageSize
	}

	users, err := s.users.List(ctx, ids, from, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []*entity.User{}
	}
	return users, nil
}

func (s *userService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	logrus.WithField("user_id", id).Info("User deleted")
	return nil
}

type categoryService struct {
	categories database.CategoryRepository
}

func NewCategoryService(repos *database.Repositories) CategoryService {
	return &categoryService{categories: repos.Categories}
}

func (s *categoryService) CreateCategory(ctx context.Context, req *CategoryRequest) (*entity.Category, error) {
	if req == nil {
		return nil, entity.Validationf("category body is required")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	category := &entity.Category{Name: strings.TrimSpace(req.Name)}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *categoryService) UpdateCategory(ctx context.Context, id int64, req *CategoryRequest) (*entity.Category, error) {
	if req == nil {
		return nil, entity.Validationf("category body is required")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	category := &entity.Category{ID: id, Name: strings.TrimSpace(req.Name)}
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *categoryService) DeleteCategory(ctx context.Context, id int64) error {
	return s.categories.Delete(ctx, id)
}

func (s *categoryService) GetCategory(ctx context.Context, id int64) (*entity.Category, error) {
	return s.categories.GetByID(ctx, id)
}

func (s *categoryService) GetCategories(ctx context.Context, from, size int) ([]*entity.Category, error) {
	if from < 0 || size < 0 {
		return nil, entity.Validationf("from and size must not be negative")
	}
	if size == 0 {
		size = defaultPageSize
	}

	categories, err := s.categories.List(ctx, from, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if categories == nil {
		categories = []*entity.Category{}
	}
	return categories, nil
}
